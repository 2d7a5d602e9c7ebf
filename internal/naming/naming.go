package naming

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

const (
	// MaxSlugLength bounds the topic-derived part of a file stem.
	MaxSlugLength = 60
	// FallbackSlug is used when a topic has no letters or digits.
	FallbackSlug = "podcast"
	// TimestampLayout formats the stem prefix (YYYYMMDD_HHMMSS).
	TimestampLayout = "20060102_150405"

	ScriptExt = ".txt"
	AudioExt  = ".mp3"
)

// OutputPaths is the script/audio pair for one request. Both share a stem and live in Dir.
type OutputPaths struct {
	Dir        string
	Stem       string
	ScriptPath string
	AudioPath  string
}

// Slugify derives a lowercase, hyphen-separated identifier of at most
// MaxSlugLength characters from topic.
func Slugify(topic string) string {
	var b strings.Builder
	b.Grow(len(topic))
	pendingHyphen := false
	for _, r := range topic {
		if isASCIIAlnum(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(toLowerASCII(r))
			continue
		}
		pendingHyphen = true
	}

	slug := b.String()
	if len(slug) > MaxSlugLength {
		slug = strings.TrimRight(slug[:MaxSlugLength], "-")
	}
	if slug == "" {
		return FallbackSlug
	}
	return slug
}

// MakeOutputPaths returns the paths for a topic generated at now. Nothing is created on disk.
func MakeOutputPaths(topic, outputDir string, now time.Time) OutputPaths {
	return pathsForStem(outputDir, now.Format(TimestampLayout)+"_"+Slugify(topic))
}

// WithSuffix returns sibling paths whose stem carries a numeric suffix ("<stem>-2").
// Used when the plain stem is already taken in the output directory.
func (p OutputPaths) WithSuffix(n int) OutputPaths {
	return pathsForStem(p.Dir, fmt.Sprintf("%s-%d", p.Stem, n))
}

func pathsForStem(dir, stem string) OutputPaths {
	return OutputPaths{
		Dir:        dir,
		Stem:       stem,
		ScriptPath: filepath.Join(dir, stem+ScriptExt),
		AudioPath:  filepath.Join(dir, stem+AudioExt),
	}
}

func isASCIIAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func toLowerASCII(r rune) rune {
	if r >= 'A' && r <= 'Z' {
		return r + ('a' - 'A')
	}
	return r
}
