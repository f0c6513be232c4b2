// Package documents stores loan attachments on an afero filesystem. The
// ledger only keeps the returned reference.
package documents

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"

	"github.com/segyhp/sacco-ledger/internal/domain"
	pkgErrors "github.com/segyhp/sacco-ledger/pkg/errors"
)

var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
}

// ErrTooLarge is returned when an upload exceeds the configured size.
var ErrTooLarge = errors.New("documents: file too large")

type Store struct {
	fs      afero.Fs
	maxSize int64
}

// NewStore roots the store at dir on fs.
func NewStore(fs afero.Fs, dir string, maxSize int64) *Store {
	return &Store{fs: afero.NewBasePathFs(fs, dir), maxSize: maxSize}
}

// NewOsStore stores documents under dir on the local disk.
func NewOsStore(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return NewStore(afero.NewOsFs(), dir, maxSize), nil
}

func isDocumentKind(kind string) bool {
	switch kind {
	case domain.DocumentEmploymentContract, domain.DocumentBankStatements, domain.DocumentIDDocument:
		return true
	}
	return false
}

// ContentType returns the media type served for a stored reference.
func ContentType(ref string) string {
	if ct, ok := allowedExtensions[strings.ToLower(path.Ext(ref))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// Save writes r as the kind document of loanID and returns its reference.
// An upload of the same kind with another extension is left in place until
// Prune removes it.
func (s *Store) Save(loanID, kind, filename string, r io.Reader) (string, error) {
	if !isDocumentKind(kind) {
		return "", pkgErrors.WrapValidation(fmt.Sprintf("unknown document type %q", kind), nil)
	}
	ext := strings.ToLower(path.Ext(filename))
	if _, ok := allowedExtensions[ext]; !ok {
		return "", pkgErrors.WrapValidation(
			"only .pdf, .doc, .docx, .jpg, .jpeg and .png documents are accepted", nil)
	}
	if strings.ContainsAny(loanID, `/\`) || loanID == "" || loanID == "." || loanID == ".." {
		return "", pkgErrors.WrapValidation(fmt.Sprintf("invalid loan id %q", loanID), nil)
	}

	if err := s.fs.MkdirAll(loanID, 0o755); err != nil {
		return "", err
	}

	ref := path.Join(loanID, kind+ext)
	tmp := ref + ".part"
	f, err := s.fs.Create(tmp)
	if err != nil {
		return "", err
	}

	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && n > s.maxSize {
		err = pkgErrors.WrapValidation(
			fmt.Sprintf("document exceeds %d bytes", s.maxSize), ErrTooLarge)
	}
	if err != nil {
		_ = s.fs.Remove(tmp)
		return "", err
	}

	if err := s.fs.Rename(tmp, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// Prune removes every kind document of loanID except keep.
func (s *Store) Prune(loanID, kind, keep string) error {
	var errs []error
	for ext := range allowedExtensions {
		ref := path.Join(loanID, kind+ext)
		if ref == keep {
			continue
		}
		if err := s.fs.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open returns the stored document behind ref.
func (s *Store) Open(ref string) (afero.File, error) {
	f, err := s.fs.Open(ref)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("documents: %s: %w", ref, os.ErrNotExist)
	}
	return f, err
}
