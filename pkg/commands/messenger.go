package commands

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Color of a server message or notification
type Color string

const (
	ColorRed   Color = "red"
	ColorGreen Color = "green"
	ColorWhite Color = "white"
)

// ChatSender is the sender name of chat replies
const ChatSender = "Permissions"

// Messenger delivers replies to a connected player
type Messenger interface {
	SendServerMessage(recipient string, color Color, text string)
	SendNotification(recipient string, color Color, textSize, displayTime float64, text string)
	SendChatMessage(recipient, sender, text string)
}

// MessageKind distinguishes recorded messages
type MessageKind string

const (
	KindServerMessage MessageKind = "server_message"
	KindNotification  MessageKind = "notification"
	KindChat          MessageKind = "chat"
)

// Message is one delivered reply
type Message struct {
	Kind        MessageKind `json:"kind"`
	Recipient   string      `json:"recipient"`
	Sender      string      `json:"sender,omitempty"`
	Color       Color       `json:"color,omitempty"`
	TextSize    float64     `json:"text_size,omitempty"`
	DisplayTime float64     `json:"display_time,omitempty"`
	Text        string      `json:"text"`
}

// RecordingMessenger keeps every message it is asked to send
type RecordingMessenger struct {
	mu       sync.Mutex
	messages []Message
}

// NewRecordingMessenger creates an empty RecordingMessenger
func NewRecordingMessenger() *RecordingMessenger {
	return &RecordingMessenger{}
}

func (r *RecordingMessenger) add(m Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

// SendServerMessage implements Messenger
func (r *RecordingMessenger) SendServerMessage(recipient string, color Color, text string) {
	r.add(Message{Kind: KindServerMessage, Recipient: recipient, Color: color, Text: text})
}

// SendNotification implements Messenger
func (r *RecordingMessenger) SendNotification(recipient string, color Color, textSize, displayTime float64, text string) {
	r.add(Message{
		Kind:        KindNotification,
		Recipient:   recipient,
		Color:       color,
		TextSize:    textSize,
		DisplayTime: displayTime,
		Text:        text,
	})
}

// SendChatMessage implements Messenger
func (r *RecordingMessenger) SendChatMessage(recipient, sender, text string) {
	r.add(Message{Kind: KindChat, Recipient: recipient, Sender: sender, Text: text})
}

// Messages returns a copy of the recorded messages
func (r *RecordingMessenger) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

// LogMessenger writes replies to a logger
type LogMessenger struct {
	Logger logrus.FieldLogger
}

// SendServerMessage implements Messenger
func (l LogMessenger) SendServerMessage(recipient string, color Color, text string) {
	l.Logger.WithFields(logrus.Fields{
		"recipient": recipient,
		"color":     color,
	}).Info(text)
}

// SendNotification implements Messenger
func (l LogMessenger) SendNotification(recipient string, color Color, textSize, displayTime float64, text string) {
	l.Logger.WithFields(logrus.Fields{
		"recipient":    recipient,
		"color":        color,
		"text_size":    textSize,
		"display_time": displayTime,
	}).Info(text)
}

// SendChatMessage implements Messenger
func (l LogMessenger) SendChatMessage(recipient, sender, text string) {
	l.Logger.WithFields(logrus.Fields{
		"recipient": recipient,
		"sender":    sender,
	}).Info(text)
}

var (
	_ Messenger = (*RecordingMessenger)(nil)
	_ Messenger = LogMessenger{}
)
