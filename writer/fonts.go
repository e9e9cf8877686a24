package writer

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/text/language"
)

// FontAuto 作为 FontPath 时按目标语言查找系统字体
const FontAuto = "auto"

// gofpdf 只能嵌入 TTF，这里不列出 .ttc
var linuxFonts = map[string][]string{
	"zh": {
		"truetype/droid/DroidSansFallbackFull.ttf",
		"truetype/droid/DroidSansFallback.ttf",
		"truetype/arphic-gkai00mp/gkai00mp.ttf",
	},
	"ja": {
		"truetype/takao-gothic/TakaoPGothic.ttf",
		"truetype/vlgothic/VL-Gothic-Regular.ttf",
		"truetype/ipa/ipag.ttf",
	},
	"ko": {
		"truetype/nanum/NanumGothic.ttf",
		"truetype/baekmuk/gulim.ttf",
	},
	"ar": {
		"truetype/kacst/KacstBook.ttf",
		"opentype/noto/NotoSansArabic-Regular.ttf",
	},
	"hi": {
		"truetype/lohit-devanagari/Lohit-Devanagari.ttf",
		"truetype/gargi/Gargi.ttf",
	},
	"th": {
		"truetype/tlwg/Garuda.ttf",
		"truetype/tlwg/Loma.ttf",
	},
	"he": {
		"truetype/dejavu/DejaVuSans.ttf",
	},
	"": {
		"truetype/dejavu/DejaVuSans.ttf",
		"truetype/liberation/LiberationSans-Regular.ttf",
		"truetype/noto/NotoSans-Regular.ttf",
		"truetype/droid/DroidSans.ttf",
		"truetype/ubuntu/Ubuntu-R.ttf",
	},
}

var macFonts = map[string][]string{
	"zh": {"Supplemental/Arial Unicode.ttf"},
	"ja": {"Supplemental/Arial Unicode.ttf"},
	"ko": {"Supplemental/AppleGothic.ttf", "Supplemental/Arial Unicode.ttf"},
	"":   {"Supplemental/Arial Unicode.ttf", "Supplemental/Arial.ttf"},
}

var windowsFonts = map[string][]string{
	"zh": {"simhei.ttf", "simkai.ttf"},
	"ja": {"arialuni.ttf"},
	"ko": {"malgun.ttf"},
	"ar": {"tahoma.ttf"},
	"hi": {"mangal.ttf"},
	"th": {"tahoma.ttf"},
	"":   {"arial.ttf", "calibri.ttf", "tahoma.ttf"},
}

// FindSystemFont 根据目标语言查找可嵌入的系统 TTF 字体，找不到返回空字符串
func FindSystemFont(lang string) string {
	switch runtime.GOOS {
	case "windows":
		return findFont([]string{filepath.Join(os.Getenv("WINDIR"), "Fonts")}, windowsFonts, lang)
	case "darwin":
		return findFont([]string{"/System/Library/Fonts", "/Library/Fonts"}, macFonts, lang)
	default:
		return findFont([]string{
			"/usr/share/fonts",
			"/usr/local/share/fonts",
			filepath.Join(os.Getenv("HOME"), ".fonts"),
		}, linuxFonts, lang)
	}
}

// findFont 先查语言专用字体，再查通用字体
func findFont(dirs []string, table map[string][]string, lang string) string {
	candidates := table[fontKey(lang)]
	candidates = append(candidates[:len(candidates):len(candidates)], table[""]...)

	for _, dir := range dirs {
		for _, candidate := range candidates {
			p := filepath.Join(dir, candidate)
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return p
			}
		}
	}
	return ""
}

func fontKey(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return ""
	}
	base, _ := tag.Base()
	return strings.ToLower(base.String())
}

// resolveFont 解析 FontPath，auto 时按语言查找
func (w *Writer) resolveFont(lang string) string {
	if w.opts.FontPath != FontAuto {
		return w.opts.FontPath
	}
	return FindSystemFont(lang)
}
