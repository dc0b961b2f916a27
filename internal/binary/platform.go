package binary

import (
	"strings"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/platform"
)

// signatureExts are the detached signature suffixes looked up for an asset.
var signatureExts = []string{".asc", ".sig"}

// MatchAsset returns the first asset of release built for key. An asset
// matches when its name contains one of key's tokens and ends with the
// archive extension used on goos. A token must not be followed by a letter
// or digit, so linux_arm never matches a linux_arm64 asset.
func MatchAsset(release model.Release, key platform.Key, goos string) (*model.Asset, bool) {
	ext := platform.ArchiveExt(goos)
	tokens := key.Tokens()
	for i := range release.Assets {
		asset := &release.Assets[i]
		if !strings.HasSuffix(asset.Name, ext) {
			continue
		}
		for _, token := range tokens {
			if containsToken(asset.Name, token) {
				return asset, true
			}
		}
	}
	return nil, false
}

func containsToken(name, token string) bool {
	for rest := name; ; {
		i := strings.Index(rest, token)
		if i < 0 {
			return false
		}
		end := i + len(token)
		if end == len(rest) || !isAlnum(rest[end]) {
			return true
		}
		rest = rest[i+1:]
	}
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// SignatureAsset returns the detached signature published for assetName,
// if any.
func SignatureAsset(release model.Release, assetName string) (*model.Asset, bool) {
	for _, ext := range signatureExts {
		for i := range release.Assets {
			if release.Assets[i].Name == assetName+ext {
				return &release.Assets[i], true
			}
		}
	}
	return nil, false
}

// executableName returns the daemon file name on goos.
func executableName(goos string) string {
	if goos == "windows" {
		return BinaryName + ".exe"
	}
	return BinaryName
}
