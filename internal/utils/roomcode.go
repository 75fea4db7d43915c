package utils

import "strings"

// NormalizeRoomCode 房间码统一去空白并转大写
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
