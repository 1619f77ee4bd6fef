// Package files хранит вложения поставщиков (счёт, договор) на локальном диске.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("file type is not allowed")
	ErrEmpty           = errors.New("file is empty")
)

var allowedExt = map[string]bool{
	".pdf":  true,
	".doc":  true,
	".docx": true,
	".xls":  true,
	".xlsx": true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".zip":  true,
}

type Store struct {
	dir     string
	maxSize int64
}

func NewStore(dir string, maxSize int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create uploads dir")
	}
	return &Store{dir: dir, maxSize: maxSize}, nil
}

// Save сохраняет файл под случайным именем в подкаталоге kind и возвращает путь.
// Исходное имя используется только для расширения.
func (s *Store) Save(kind, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedType
	}

	dir := filepath.Join(s.dir, filepath.Base(kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create kind dir")
	}
	path := filepath.Join(dir, fmt.Sprintf("%s%s", uuid.NewString(), ext))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", errors.Wrap(err, "create file")
	}

	// читаем на байт больше лимита, чтобы отличить "ровно лимит" от превышения
	n, err := io.Copy(f, io.LimitReader(r, s.maxSize+1))
	closeErr := f.Close()
	switch {
	case err != nil:
		os.Remove(path)
		return "", errors.Wrap(err, "write file")
	case closeErr != nil:
		os.Remove(path)
		return "", errors.Wrap(closeErr, "close file")
	case n > s.maxSize:
		os.Remove(path)
		return "", ErrTooLarge
	case n == 0:
		os.Remove(path)
		return "", ErrEmpty
	}
	return path, nil
}

// Remove удаляет файл, сохранённый этим Store; отсутствие файла не ошибка
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	rel, err := filepath.Rel(s.dir, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return errors.Errorf("path %q is outside uploads dir", path)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "remove file")
	}
	return nil
}
