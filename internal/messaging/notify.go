package messaging

import (
	"log"
	"os/exec"
	"strings"

	"github.com/arlobright/signalbox/internal/config"
	"github.com/arlobright/signalbox/internal/models"
)

// DesktopNotify runs the configured notification command for a message.
// Best-effort: errors are logged, not returned.
func DesktopNotify(msg *models.Message, cfg config.NotifyConfig) {
	if cfg.Command == "" {
		return
	}
	cmdStr := templateMessage(cfg.Command, msg)
	cmd := exec.Command("sh", "-c", cmdStr)
	if out, err := cmd.CombinedOutput(); err != nil {
		log.Printf("messaging: notify command failed: %v: %s", err, strings.TrimSpace(string(out)))
	}
}

// ShouldNotify returns true if the message warrants a desktop notification.
func ShouldNotify(recipient string) bool {
	return recipient == "human"
}

// templateMessage replaces placeholders in the command template with message values.
func templateMessage(command string, msg *models.Message) string {
	r := strings.NewReplacer(
		"{{.Body}}", msg.Body,
		"{{.From}}", msg.FromAgent,
	)
	return r.Replace(command)
}
