package constants

const (
	// DBPath is the directory used by the CLI when no -dir flag is given
	DBPath = "."

	// SegmentFilePerm is the permission of newly created segment files
	SegmentFilePerm = 0644

	// DirPerm is the permission of newly created data directories
	DirPerm = 0755
)
