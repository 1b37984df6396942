package utils

const ellipsis = "..."

// Truncate は表示用に s を最大 limit 文字（rune 単位）に切り詰めます。
// 切り詰めた場合は末尾に "..." を付けます。limit が 0 以下なら s をそのまま返します。
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}

// FormatKB はバイト数を KB 表記にします。
func FormatKB(n int) float64 {
	return float64(n) / 1024
}
