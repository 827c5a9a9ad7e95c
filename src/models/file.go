package models

type UploadedFile struct {
	ID       string `db:"id" json:"id"`
	FileName string `db:"orig_file_name" json:"fileName"`
	Mime     string `db:"mime" json:"mime"`
}

// StoredName is the hex content hash the bytes are stored under.
type UploadedFileWithLocation struct {
	File       UploadedFile
	StoredName string
}
