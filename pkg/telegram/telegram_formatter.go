package telegram

import (
	"fmt"
	"poseidon/pkg/utils"
	"sort"
	"strings"
	"time"
)

func kindEmoji(kind string) string {
	switch kind {
	case "tp_step":
		return "🎯"
	case "tp_exit":
		return "🏁"
	case "order_placed":
		return "🚀"
	case "tp_error", "order_error":
		return "📛"
	default:
		return "🔔"
	}
}

// FormatEventMessage renders a feed event for a chat message.
func FormatEventMessage(kind, symbol, msg string, ts time.Time, data map[string]interface{}) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("%s [%s] %s\n", kindEmoji(kind), symbol, strings.ToUpper(strings.ReplaceAll(kind, "_", " "))))
	builder.WriteString(msg + "\n")

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := data[k].(type) {
		case float64:
			builder.WriteString(fmt.Sprintf("• %s: %s\n", k, utils.FormatFloat(v)))
		default:
			builder.WriteString(fmt.Sprintf("• %s: %v\n", k, v))
		}
	}
	builder.WriteString(utils.PrettyDate(ts))
	return builder.String()
}

func FormatErrorAlertMessage(ts time.Time, errType string, errMsg string, data string) string {
	return fmt.Sprintf(`📛 [ERROR ALERT]
%s
🔧 %s
⚠️ %s

📄 Data: %s
`, utils.PrettyDate(ts), errType, errMsg, data)
}
