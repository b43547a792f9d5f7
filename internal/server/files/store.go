// Package files хранит изображения профилей на файловой системе.
package files

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store сохраняет файлы в каталоге dir под случайными именами.
// Ссылка (ref) — это имя файла без пути; полный путь наружу не выдается.
type Store struct {
	dir string
}

// NewStore создает каталог при необходимости
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("files directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Save записывает содержимое r в новый файл и возвращает ref.
// Расширение берется из исходного имени файла (только буквенно-цифровое).
func (s *Store) Save(r io.Reader, originalName string) (string, error) {
	ref := uuid.New().String() + sanitizeExt(originalName)

	f, err := os.OpenFile(filepath.Join(s.dir, ref), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o640)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	return ref, nil
}

// Path возвращает путь к сохраненному файлу по ref.
// Ref с разделителями пути отвергается: ссылки никогда не
// интерпретируются как относительные пути.
func (s *Store) Path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) {
		return "", fmt.Errorf("invalid image ref")
	}
	path := filepath.Join(s.dir, ref)
	if _, err := os.Stat(path); err != nil {
		return "", fmt.Errorf("image not found: %w", err)
	}
	return path, nil
}

// Remove удаляет файл по ref; отсутствие файла — не ошибка
func (s *Store) Remove(ref string) error {
	if ref == "" || ref != filepath.Base(ref) {
		return nil
	}
	if err := os.Remove(filepath.Join(s.dir, ref)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image file: %w", err)
	}
	return nil
}

func sanitizeExt(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ext == "" || len(ext) > 8 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
