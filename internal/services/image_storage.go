package services

import (
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// 允许的图片扩展名
var allowedImageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// ImageStorage 帖子配图的本地存储，文件写入 <root>/posts/ 下
type ImageStorage struct {
	root string
}

func NewImageStorage(root string) *ImageStorage {
	return &ImageStorage{root: root}
}

// SavePost 保存帖子配图，返回媒体目录下的相对路径（如 posts/xxx.jpg）
func (s *ImageStorage) SavePost(header *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedImageExts[ext] {
		return "", fmt.Errorf("不支持的图片格式: %s", ext)
	}

	dir := filepath.Join(s.root, "posts")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("创建媒体目录失败: %w", err)
	}

	name := uuid.New().String() + ext
	dst, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return "", fmt.Errorf("创建文件失败: %w", err)
	}
	defer dst.Close()

	src, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("读取上传文件失败: %w", err)
	}
	defer src.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("写入文件失败: %w", err)
	}

	return "posts/" + name, nil
}
