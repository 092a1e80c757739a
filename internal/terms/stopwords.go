package terms

import (
	"sort"
	"strings"
)

// Set is a set of lower-cased stopwords.
type Set map[string]struct{}

// NewSet builds a stopword set, lower-casing and trimming every word.
func NewSet(words ...string) Set {
	s := make(Set, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s[w] = struct{}{}
		}
	}
	return s
}

// Contains reports whether word is in the set.
func (s Set) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// Union returns a new set holding the words of s and other.
func (s Set) Union(other Set) Set {
	out := make(Set, len(s)+len(other))
	for w := range s {
		out[w] = struct{}{}
	}
	for w := range other {
		out[w] = struct{}{}
	}
	return out
}

// Sorted returns the words in lexical order.
func (s Set) Sorted() []string {
	words := make([]string, 0, len(s))
	for w := range s {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

var defaultStopwords = NewSet(
	// Indonesian
	"yang", "di", "ke", "dari", "pada", "dalam", "untuk", "tentang", "dengan", "dan",
	"atau", "ini", "itu", "bagi", "saat", "sudah", "akan", "telah", "oleh", "setelah",
	"karena", "serta", "dapat", "bisa", "masih", "juga", "ada", "adalah", "tersebut",
	"sebagai", "kami", "kita", "mereka", "ia", "dia", "tidak", "lebih", "agar", "hal",
	"secara", "para", "demi", "antar", "nya", "jakarta", "indonesia", "sebuah", "yaitu",
	"namun", "hingga", "melalui", "terhadap", "antara", "tahun", "harus", "kepada",
	"menjadi", "sejak", "selama", "seperti", "sangat", "baik", "baru", "lain", "pun",
	"kata", "ujar", "menurut", "jika", "maka", "bahwa", "apa", "mana", "sini", "sana",
	// English
	"a", "an", "the", "to", "in", "for", "of", "on", "and", "or", "is", "are", "was",
	"were", "be", "been", "by", "with", "as", "at", "from", "that", "this", "it", "its",
	"will", "has", "have", "had", "not", "but", "we", "our", "said",
)

// DefaultStopwords returns a copy of the built-in stopword list.
func DefaultStopwords() Set {
	return defaultStopwords.Union(nil)
}
