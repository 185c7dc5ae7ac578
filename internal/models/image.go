package models

import "time"

// Image is the persisted metadata of one ingested photo. Width and Height
// describe the full rendition.
type Image struct {
	ID               string
	UserID           string
	Filename         string
	OriginalFilename string
	PreviewPath      string
	FullPath         string
	PreviewSize      int64
	FullSize         int64
	MIMEType         string
	Width            *int
	Height           *int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (i Image) ObjectPaths() []string {
	return []string{i.PreviewPath, i.FullPath}
}
