// Package timezone は保存用の正規タイムゾーン（UTC+4固定）と
// 表示用タイムゾーンとの相互変換を提供する。
//
// 永続化する時刻はすべて正規タイムゾーンで表現し、日付ラベル（YYYY-MM-DD）も
// 正規タイムゾーンの暦日から導出する。表示時のみ閲覧者のタイムゾーンへ変換する。
// 表示用オフセットは静的テーブルで管理しており、夏時間の切り替えは扱わない。
package timezone

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// StorageOffset は正規（保存用）タイムゾーンのUTCオフセット。ドバイ時間。
const StorageOffset = 4 * time.Hour

// DateLayout は日付ラベルのフォーマット。固定長のため辞書順比較が暦順と一致する。
const DateLayout = "2006-01-02"

// StorageLocation は正規タイムゾーンを表すLocation。
var StorageLocation = time.FixedZone("+04", int(StorageOffset/time.Second))

var (
	// ErrInvalidDateLabel は日付ラベルの形式が不正な場合のエラー。
	ErrInvalidDateLabel = errors.New("invalid date label")
	// ErrReversedRange は開始日が終了日より後の場合のエラー。
	ErrReversedRange = errors.New("start date is after end date")
	// ErrInvalidTime は時刻文字列を解釈できない場合のエラー。
	ErrInvalidTime = errors.New("invalid time")
)

// zoneOffsets はゾーン識別子から固定UTCオフセットへの静的テーブル。
// 夏時間は考慮せず、標準時のオフセットを使用する。
var zoneOffsets = map[string]time.Duration{
	"UTC":                 0,
	"Etc/UTC":             0,
	"GMT":                 0,
	"Europe/London":       0,
	"Europe/Lisbon":       0,
	"Africa/Casablanca":   0,
	"Europe/Paris":        1 * time.Hour,
	"Europe/Berlin":       1 * time.Hour,
	"Europe/Madrid":       1 * time.Hour,
	"Europe/Rome":         1 * time.Hour,
	"Europe/Amsterdam":    1 * time.Hour,
	"Africa/Lagos":        1 * time.Hour,
	"Africa/Cairo":        2 * time.Hour,
	"Europe/Athens":       2 * time.Hour,
	"Europe/Kiev":         2 * time.Hour,
	"Europe/Kyiv":         2 * time.Hour,
	"Africa/Johannesburg": 2 * time.Hour,
	"Europe/Istanbul":     3 * time.Hour,
	"Europe/Moscow":       3 * time.Hour,
	"Asia/Riyadh":         3 * time.Hour,
	"Africa/Nairobi":      3 * time.Hour,
	"Asia/Tehran":         3*time.Hour + 30*time.Minute,
	"Asia/Dubai":          4 * time.Hour,
	"Asia/Muscat":         4 * time.Hour,
	"Asia/Baku":           4 * time.Hour,
	"Asia/Kabul":          4*time.Hour + 30*time.Minute,
	"Asia/Karachi":        5 * time.Hour,
	"Asia/Tashkent":       5 * time.Hour,
	"Asia/Kolkata":        5*time.Hour + 30*time.Minute,
	"Asia/Calcutta":       5*time.Hour + 30*time.Minute,
	"Asia/Colombo":        5*time.Hour + 30*time.Minute,
	"Asia/Kathmandu":      5*time.Hour + 45*time.Minute,
	"Asia/Dhaka":          6 * time.Hour,
	"Asia/Almaty":         5 * time.Hour,
	"Asia/Bangkok":        7 * time.Hour,
	"Asia/Jakarta":        7 * time.Hour,
	"Asia/Ho_Chi_Minh":    7 * time.Hour,
	"Asia/Shanghai":       8 * time.Hour,
	"Asia/Singapore":      8 * time.Hour,
	"Asia/Hong_Kong":      8 * time.Hour,
	"Asia/Manila":         8 * time.Hour,
	"Australia/Perth":     8 * time.Hour,
	"Asia/Tokyo":          9 * time.Hour,
	"Asia/Seoul":          9 * time.Hour,
	"Australia/Adelaide":  9*time.Hour + 30*time.Minute,
	"Australia/Sydney":    10 * time.Hour,
	"Australia/Melbourne": 10 * time.Hour,
	"Australia/Brisbane":  10 * time.Hour,
	"Pacific/Auckland":    12 * time.Hour,
	"Atlantic/Azores":     -1 * time.Hour,
	"America/Sao_Paulo":   -3 * time.Hour,
	"America/Halifax":     -4 * time.Hour,
	"America/New_York":    -5 * time.Hour,
	"America/Toronto":     -5 * time.Hour,
	"America/Bogota":      -5 * time.Hour,
	"America/Chicago":     -6 * time.Hour,
	"America/Mexico_City": -6 * time.Hour,
	"America/Denver":      -7 * time.Hour,
	"America/Phoenix":     -7 * time.Hour,
	"America/Los_Angeles": -8 * time.Hour,
	"America/Anchorage":   -9 * time.Hour,
	"Pacific/Honolulu":    -10 * time.Hour,
}

// literalOffsetPattern は "+05:30"、"-0800"、"UTC+3"、"GMT-5" 形式のオフセット表記。
var literalOffsetPattern = regexp.MustCompile(`^(?:UTC|GMT)?([+-])(\d{1,2})(?::?(\d{2}))?$`)

// dateLabelPattern は日付ラベルの形式チェック用。
var dateLabelPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// localLayouts はオフセットを含まない入力を解釈する際に試すレイアウト。
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// Offset はゾーン識別子に対応する固定UTCオフセットを返す。
// テーブルにない識別子はリテラルのオフセット表記として解釈を試みる。
// 空または未知の識別子の場合は (0, false) を返す。
func Offset(zoneID string) (time.Duration, bool) {
	id := strings.TrimSpace(zoneID)
	if id == "" {
		return 0, false
	}
	if d, ok := zoneOffsets[id]; ok {
		return d, true
	}
	return parseLiteralOffset(id)
}

// IsKnownZone はゾーン識別子が表示用に解決できるかを返す。
func IsKnownZone(zoneID string) bool {
	_, ok := Offset(zoneID)
	return ok
}

// Location はゾーン識別子に対応する固定オフセットのLocationを返す。
// 未知または空の識別子はUTCとして扱う。
func Location(zoneID string) *time.Location {
	d, ok := Offset(zoneID)
	if !ok || d == 0 {
		return time.UTC
	}
	return time.FixedZone(strings.TrimSpace(zoneID), int(d/time.Second))
}

// ToCanonical は時刻を正規タイムゾーン（UTC+4）の表現に変換する。
// 瞬間は変わらず、壁時計がUTCから+4時間ずれた表現になる。
func ToCanonical(t time.Time) time.Time {
	return t.In(StorageLocation)
}

// ToDisplay は正規タイムゾーンの時刻を表示用タイムゾーンの表現に変換する。
// 未知または空のゾーン識別子はUTC表示になる。
func ToDisplay(canonical time.Time, zoneID string) time.Time {
	return canonical.In(Location(zoneID))
}

// DateLabel は正規タイムゾーンでの暦日を YYYY-MM-DD 形式で返す。
func DateLabel(t time.Time) string {
	return ToCanonical(t).Format(DateLayout)
}

// PreviousDateLabel は now の正規暦日の前日の日付ラベルを返す。
func PreviousDateLabel(now time.Time) string {
	return DateLabel(now.Add(-24 * time.Hour))
}

// ValidDateLabel は文字列が実在する日付の YYYY-MM-DD 形式かを返す。
func ValidDateLabel(s string) bool {
	if !dateLabelPattern.MatchString(s) {
		return false
	}
	_, err := time.Parse(DateLayout, s)
	return err == nil
}

// ValidateDateRange は開始・終了の日付ラベルを検証する。
// 両端を含む範囲として扱うため start == end は有効。
func ValidateDateRange(start, end string) error {
	if !ValidDateLabel(start) {
		return fmt.Errorf("%w: startDate %q", ErrInvalidDateLabel, start)
	}
	if !ValidDateLabel(end) {
		return fmt.Errorf("%w: endDate %q", ErrInvalidDateLabel, end)
	}
	if start > end {
		return fmt.Errorf("%w: %s > %s", ErrReversedRange, start, end)
	}
	return nil
}

// InRange は日付ラベルが [start, end] に含まれるかを返す。
// 空の境界は無制限として扱う。
func InRange(label, start, end string) bool {
	if start != "" && label < start {
		return false
	}
	if end != "" && label > end {
		return false
	}
	return true
}

// ParseInZone は時刻文字列を解釈する。
// RFC 3339 のようにオフセットを含む場合はそれを優先し、
// 含まない壁時計表記は zoneID の固定オフセットで解釈する。
func ParseInZone(value, zoneID string) (time.Time, error) {
	v := strings.TrimSpace(value)
	if v == "" {
		return time.Time{}, fmt.Errorf("%w: empty value", ErrInvalidTime)
	}

	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}

	loc := Location(zoneID)
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTime, value)
}

// parseLiteralOffset は "+05:30" のようなリテラル表記をオフセットに変換する。
func parseLiteralOffset(id string) (time.Duration, bool) {
	m := literalOffsetPattern.FindStringSubmatch(strings.ToUpper(id))
	if m == nil {
		return 0, false
	}

	hours, err := strconv.Atoi(m[2])
	if err != nil || hours > 14 {
		return 0, false
	}
	minutes := 0
	if m[3] != "" {
		minutes, err = strconv.Atoi(m[3])
		if err != nil || minutes >= 60 {
			return 0, false
		}
	}

	d := time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute
	if m[1] == "-" {
		d = -d
	}
	return d, true
}
