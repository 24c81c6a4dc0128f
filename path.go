package cfb

import (
	"fmt"
	"path"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const MAX_NAME_LEN int = 31

type Ordering int

const (
	OrderLess Ordering = iota
	OrderEqual
	OrderGreater
)

func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("empty name")
	}

	if strings.ContainsAny(name, "/\\:!") {
		return fmt.Errorf("name contains one of /\\:! characters: %v", name)
	}

	if n := len(utf16.Encode([]rune(name))); n > MAX_NAME_LEN {
		return fmt.Errorf("name %v is %v UTF-16 code units long, max is %v", name, n, MAX_NAME_LEN)
	}

	return nil
}

// CompareNames orders directory entry names the way sibling trees are sorted
// on disk: shorter names first, then by upper-cased code units.
func CompareNames(nameLeft, nameRight string) Ordering {
	upper := cases.Upper(language.Und)
	ul := utf16.Encode([]rune(upper.String(nameLeft)))
	ur := utf16.Encode([]rune(upper.String(nameRight)))

	nl := len(utf16.Encode([]rune(nameLeft)))
	nr := len(utf16.Encode([]rune(nameRight)))
	switch {
	case nl < nr:
		return OrderLess
	case nl > nr:
		return OrderGreater
	}

	for i := 0; i < len(ul) && i < len(ur); i++ {
		switch {
		case ul[i] < ur[i]:
			return OrderLess
		case ul[i] > ur[i]:
			return OrderGreater
		}
	}

	switch {
	case len(ul) < len(ur):
		return OrderLess
	case len(ul) > len(ur):
		return OrderGreater
	}

	return OrderEqual
}

// NameChainFromPath splits a slash separated path into entry names, resolving
// "." and ".." lexically. A path climbing above its start yields no names.
func NameChainFromPath(s string) []string {
	s = path.Clean(s)
	if s == "" || s == "." {
		return []string{}
	}

	if s[0] == '/' {
		s = s[1:]
	}

	if s == "" {
		return []string{}
	}

	if s == ".." || strings.HasPrefix(s, "../") {
		return []string{}
	}

	return strings.Split(s, "/")
}

func PathFromNameChain(names []string) string {
	return "/" + strings.Join(names, "/")
}
