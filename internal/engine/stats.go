package engine

// Stats counts what one pass examined and produced.
type Stats struct {
	ExaminedFiles  int64 `json:"examined_files"`
	ExaminedBytes  int64 `json:"examined_bytes"`
	NewFiles       int64 `json:"new_files"`
	NewBytes       int64 `json:"new_bytes"`
	ModifiedFiles  int64 `json:"modified_files"`
	ModifiedBytes  int64 `json:"modified_bytes"`
	DeltaBytes     int64 `json:"delta_bytes"`
	DeletedFiles   int64 `json:"deleted_files"`
	NewFolders     int64 `json:"new_folders"`
	DeletedFolders int64 `json:"deleted_folders"`
}

// HasChanges reports whether the pass found anything to store.
func (s Stats) HasChanges() bool {
	return s.NewFiles+s.ModifiedFiles+s.DeletedFiles+s.NewFolders+s.DeletedFolders > 0
}
