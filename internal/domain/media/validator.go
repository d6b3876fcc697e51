package media

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

var imageSignatures = map[string][]byte{
	"jpeg": {0xFF, 0xD8},
	"jpg":  {0xFF, 0xD8},
	"png":  {0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	"gif":  {0x47, 0x49, 0x46, 0x38},
	"webp": {0x52, 0x49, 0x46, 0x46},
}

// ValidationResult reports the outcome of validating generated image bytes.
type ValidationResult struct {
	IsValid  bool
	Format   string
	Width    int
	Height   int
	FileSize int64
	Error    error
}

// Validator checks that generated payloads really are decodable images and
// not an HTML error page or truncated response from the generation service.
type Validator struct {
	maxFileSize int64
}

func NewValidator(maxFileSize int64) *Validator {
	if maxFileSize <= 0 {
		maxFileSize = 10 << 20
	}
	return &Validator{maxFileSize: maxFileSize}
}

// Validate inspects the payload. An empty declaredFormat skips the
// signature check and relies on decoding alone.
func (v *Validator) Validate(data []byte, declaredFormat string) ValidationResult {
	result := ValidationResult{IsValid: false}

	if len(data) == 0 {
		result.Error = fmt.Errorf("empty image payload")
		return result
	}
	if int64(len(data)) > v.maxFileSize {
		result.Error = fmt.Errorf("file size exceeds limit: %d bytes (max %d bytes)",
			len(data), v.maxFileSize)
		return result
	}
	if declaredFormat != "" && !matchesSignature(data, declaredFormat) {
		result.Error = fmt.Errorf("payload does not look like %s", declaredFormat)
		return result
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		result.Error = fmt.Errorf("decode image: %w", err)
		return result
	}

	result.IsValid = true
	result.Format = format
	result.Width = cfg.Width
	result.Height = cfg.Height
	result.FileSize = int64(len(data))
	return result
}

func matchesSignature(data []byte, format string) bool {
	signature, ok := imageSignatures[strings.ToLower(format)]
	if !ok {
		return true
	}
	if len(data) < len(signature) {
		return false
	}
	return bytes.Equal(signature, data[:len(signature)])
}
