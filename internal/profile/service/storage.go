package service

import (
	"fmt"
	"os"
	"path/filepath"
)

// ============================================================
// File Storage
// ============================================================

// FileStorage раскладывает файлы профиля по каталогу root/<id>.
type FileStorage struct {
	root string
}

func NewFileStorage(root string) *FileStorage {
	return &FileStorage{root: root}
}

func (s *FileStorage) ProfileDir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *FileStorage) DXFPath(id string) string {
	return filepath.Join(s.ProfileDir(id), "profile.dxf")
}

func (s *FileStorage) ThumbPath(id string) string {
	return filepath.Join(s.ProfileDir(id), "thumb.svg")
}

func (s *FileStorage) EnsureDir(id string) error {
	if err := os.MkdirAll(s.ProfileDir(id), 0o755); err != nil {
		return fmt.Errorf("mkdir profile dir: %w", err)
	}
	return nil
}

func (s *FileStorage) SaveFile(id, target string, data []byte) error {
	if err := s.EnsureDir(id); err != nil {
		return err
	}
	return os.WriteFile(target, data, 0o644)
}

// Remove удаляет каталог профиля целиком.
func (s *FileStorage) Remove(id string) error {
	if id == "" {
		return fmt.Errorf("empty profile id")
	}
	if err := os.RemoveAll(s.ProfileDir(id)); err != nil {
		return fmt.Errorf("remove profile dir: %w", err)
	}
	return nil
}
