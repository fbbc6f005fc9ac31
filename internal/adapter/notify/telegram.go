package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/fierylion/pg-backups/internal/config"
	"github.com/fierylion/pg-backups/internal/domain"
)

// TelegramNotifier posts a summary of every backup cycle to a chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

func NewTelegram(cfg *config.TelegramConfig) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:    bot,
		chatID: cfg.ChatID,
	}, nil
}

func (t *TelegramNotifier) NotifyCycle(report *domain.CycleReport) error {
	msg := tgbotapi.NewMessage(t.chatID, FormatCycleReport(report))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("failed to send telegram notification: %w", err)
	}
	return nil
}

func FormatCycleReport(report *domain.CycleReport) string {
	var b strings.Builder

	if report.Succeeded() {
		fmt.Fprintf(&b, "✅ Backup %s completed\n\n", report.FolderID)
	} else {
		fmt.Fprintf(&b, "⚠️ Backup %s completed with %d error(s)\n\n",
			report.FolderID, len(report.Errors()))
	}

	var dumped int
	var totalSize int64
	for _, dump := range report.Dumps {
		if dump.Err == nil {
			dumped++
			totalSize += dump.Artifact.Size
		}
	}
	fmt.Fprintf(&b, "📦 Artifacts: %d, %s\n", dumped, humanize.Bytes(uint64(totalSize)))

	for _, dump := range report.Dumps {
		if dump.Err != nil {
			fmt.Fprintf(&b, "❌ Dump failed: %v\n", dump.Err)
		}
	}

	for _, push := range report.Pushes {
		if push.Err != nil {
			fmt.Fprintf(&b, "❌ Replication to %s failed\n", push.Backend)
		} else {
			fmt.Fprintf(&b, "☁️ %s: replicated\n", push.Backend)
		}
	}

	if deleted := report.DeletedTotal(); deleted > 0 {
		fmt.Fprintf(&b, "🧹 Pruned %d expired folder(s)\n", deleted)
	}

	fmt.Fprintf(&b, "🕐 Duration: %s", report.Duration().Round(time.Second))
	return b.String()
}
