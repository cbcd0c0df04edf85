package server

import (
	"fmt"
	"regexp"
	"strings"

	"seedshare/internal/models"
)

const maxSeedCodeLength = 128

var seedCodeRegex = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validateSeedCode(seedCode string) bool {
	return seedCodeRegex.MatchString(seedCode)
}

// requireSeedCode trims and validates a caller supplied seed code.
func requireSeedCode(value string) (string, error) {
	seedCode := strings.TrimSpace(value)
	if seedCode == "" {
		return "", badRequestCode(fmt.Errorf("seed_code is required"), ErrCodeMissingRequired)
	}
	if !validateSeedCode(seedCode) {
		return "", badRequestCode(fmt.Errorf("seed_code must be 1-%d characters of letters, digits, '_' or '-'", maxSeedCodeLength), ErrCodeInvalidSeedCode)
	}
	return seedCode, nil
}

func normalizeUploadType(value string) (models.RecordKind, error) {
	if strings.TrimSpace(value) == "" {
		return "", badRequestCode(fmt.Errorf("upload_type is required"), ErrCodeMissingRequired)
	}
	kind, err := models.ParseRecordKind(value)
	if err != nil {
		return "", badRequestCode(err, ErrCodeInvalidUploadType)
	}
	return kind, nil
}

func normalizeMetadata(raw string) (models.Metadata, error) {
	meta, err := models.ParseMetadata(raw)
	if err != nil {
		return nil, badRequestCode(err, ErrCodeInvalidMetadata)
	}
	return meta, nil
}
