package service

import (
	"log"

	"github.com/fogleman/gg"

	"clockout-watcher/internal/common"
)

// Font sizes in points for the two text roles
const (
	headerFontSize = 48
	bodyFontSize   = 40
)

// chineseFontPaths lists CJK-capable fonts in preference order, ending
// with latin fallbacks
var chineseFontPaths = []string{
	"/usr/share/fonts/truetype/arphic/uming.ttc",
	"/usr/share/fonts/truetype/arphic/ukai.ttc",
	"/usr/share/fonts/opentype/noto/NotoSansTC-Bold.ttf",
	"/usr/share/fonts/truetype/noto/NotoSansTC-Bold.ttf",
	"/usr/share/fonts/truetype/noto/NotoSansCJK-Bold.ttc",
	"/usr/share/fonts/opentype/noto/NotoSansCJK-Bold.ttc",
	"/usr/share/fonts/truetype/wqy/wqy-zenhei.ttc",
	"/usr/share/fonts/truetype/wqy/wqy-microhei.ttc",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
}

// englishFontPaths lists latin fonts in preference order
var englishFontPaths = []string{
	"/usr/share/fonts/truetype/msttcorefonts/Trebuchet_MS_Bold.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Bold.ttf",
}

// ResolveFont returns the first font on the candidate list that the
// renderer can actually load. Overrides, when given, replace the
// built-in candidates entirely.
func ResolveFont(language string, overrides []string) (string, error) {
	candidates := overrides
	if len(candidates) == 0 {
		if language == "chinese" {
			candidates = chineseFontPaths
		} else {
			candidates = englishFontPaths
		}
	}

	for _, path := range candidates {
		if _, err := gg.LoadFontFace(path, headerFontSize); err != nil {
			continue
		}
		log.Printf("Loaded annotation font: %s", path)
		return path, nil
	}

	return "", common.NotFoundError("no loadable font among %d candidates for language %q", len(candidates), language)
}
