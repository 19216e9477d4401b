package telegramcmd

import (
	"fmt"
	"strings"
)

const (
	welcomeText = "👋 Welcome to the Audio Transcriber Bot!\n\n" +
		"Send me any voice message or audio file, and I'll transcribe it for you.\n" +
		"If the audio is in Russian or another language, I'll provide an English translation too!"

	helpText = "🎯 Here's how to use the bot:\n\n" +
		"1. Send any voice message or audio file\n" +
		"2. Wait for processing (this may take a moment)\n" +
		"3. Receive your transcription and translation\n\n" +
		"Commands:\n" +
		"/start - Start the bot\n" +
		"/help - Show this help message\n" +
		"/id - Show this chat's id"

	processingText   = "🎵 Processing your audio... Please wait."
	transcriptHeader = "📝 Transcription and Translation:"
	errorReplyPrefix = "❌ Sorry, there was an error processing your audio: "
	unauthorizedText = "unauthorized, please contact the bot administrator"
)

func chatIDText(chatID int64, chatType string) string {
	chatType = strings.TrimSpace(chatType)
	if chatType == "" {
		chatType = "unknown"
	}
	return fmt.Sprintf("chat_id=%d type=%s", chatID, chatType)
}

func splitCommand(text string) (cmd string, rest string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ""
	}
	i := strings.IndexAny(text, " \n\t")
	if i == -1 {
		return text, ""
	}
	return text[:i], strings.TrimSpace(text[i:])
}

func normalizeSlashCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" || !strings.HasPrefix(cmd, "/") {
		return ""
	}
	// Allow "/cmd@BotName" variants by stripping "@...".
	if at := strings.IndexByte(cmd, '@'); at >= 0 {
		cmd = cmd[:at]
	}
	return strings.ToLower(cmd)
}
