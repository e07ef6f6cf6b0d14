package lib

import (
	"fmt"
	"math/rand"
	"os"
	"strings"
	"unicode"
)

// DefaultRandomStringsCharset Default charset used for random string generation
const DefaultRandomStringsCharset = "abcdedfghijklmnopqrstABCDEFGHIJKLMNOP"

// SliceContains reports whether item is present in slice.
func SliceContains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// GenerateRandomString returns a random string of the defined length
func GenerateRandomString(length int) string {
	var output strings.Builder
	charSet := DefaultRandomStringsCharset
	for i := 0; i < length; i++ {
		random := rand.Intn(len(charSet))
		randomChar := charSet[random]
		output.WriteString(string(randomChar))
	}
	return output.String()
}

func LocalFileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || os.IsExist(err)
}

// GetUniqueItems takes a slice of strings and returns a new slice with unique items.
func GetUniqueItems(items []string) []string {
	uniqueItemsMap := make(map[string]bool)
	for _, item := range items {
		uniqueItemsMap[item] = true
	}

	uniqueItems := make([]string, 0, len(uniqueItemsMap))
	for item := range uniqueItemsMap {
		uniqueItems = append(uniqueItems, item)
	}

	return uniqueItems
}

// CapitalizeFirstLetter capitalizes the first letter of a string
func CapitalizeFirstLetter(input string) string {
	for _, v := range input {
		u := string(unicode.ToUpper(v))
		return u + input[len(u):]
	}
	return ""
}

// BytesCountToHumanReadable converts bytes to a human-readable string format.
func BytesCountToHumanReadable(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
