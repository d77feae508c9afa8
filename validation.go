package fileshare

import (
	"context"
	"fmt"
)

// ValidationResult captures the outcome of validating a single file record.
type ValidationResult struct {
	RecordID string
	FileName string
	Err      error
}

// Passed reports whether the validation succeeded.
func (r ValidationResult) Passed() bool {
	return r.Err == nil
}

// ValidateFile verifies that md still reconstructs to a payload matching its size and digest.
func (fs *FileShare) ValidateFile(ctx context.Context, md FileMetadata) error {
	if _, err := fs.GetFileFromMetadata(ctx, md); err != nil {
		return fmt.Errorf("failed to validate %q: %w", md.FileName, err)
	}
	return nil
}

// ValidateAll validates every record agent authored and returns one result per record.
// Unlike GetAllFiles it does not stop at the first broken file.
func (fs *FileShare) ValidateAll(ctx context.Context, agent Agent) ([]ValidationResult, error) {
	files, err := fs.GetAllFileMetadata(ctx, agent)
	if err != nil {
		return nil, fmt.Errorf("failed to list files for validation: %w", err)
	}

	results := make([]ValidationResult, 0, len(files))
	for _, md := range files {
		res := ValidationResult{RecordID: md.RecordID, FileName: md.FileName}
		if err := fs.ValidateFile(ctx, md); err != nil {
			res.Err = err
		}
		results = append(results, res)
	}
	return results, nil
}
