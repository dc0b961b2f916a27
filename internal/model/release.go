package model

// Release is a published release as returned by the release metadata
// endpoint. Releases arrive newest first.
type Release struct {
	Tag    string  `json:"tag_name"`
	Assets []Asset `json:"assets"`
}

// Asset is a single downloadable file attached to a release.
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// InstallResult describes a successful install.
type InstallResult struct {
	Tag        string
	BinaryPath string
}
