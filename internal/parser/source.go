package parser

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcncl/txpool2json/internal/errors"
	"github.com/mcncl/txpool2json/internal/models"
)

// ParseString parses a complete dump held in memory.
func ParseString(src string, rec Recorder) (models.Value, error) {
	if strings.TrimSpace(src) == "" {
		return nil, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return Parse(src, rec)
}

// ReadAll reads the whole dump from r. The parser never sees partial input.
func ReadAll(r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", errors.NewInputError("failed to read input", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", errors.NewInputError("empty input received", errors.ErrEmptyInput)
	}
	return string(data), nil
}

// ReadFile reads the whole dump from the file at filePath.
func ReadFile(filePath string) (string, error) {
	if strings.TrimSpace(filePath) == "" {
		return "", errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			return "", errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return "", errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() {
		_ = file.Close()
	}()

	stat, err := file.Stat()
	if err != nil {
		return "", errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return "", errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	return ReadAll(file)
}
