package common

var (
	// binary paths (can be overridden by ldflags)
	AptGetBin   = "apt-get"
	YumBin      = "yum"
	MakeBin     = "make"
	LdconfigBin = "ldconfig"
	LsblkBin    = "lsblk"

	Version = "lzprep v1.0"
)
