package store

// Kind is the shape of a conversation.
type Kind string

const (
	KindDirect  Kind = "direct"
	KindGroup   Kind = "group"
	KindChannel Kind = "channel"
)

// MessageType classifies a message body.
type MessageType string

const (
	TypeText     MessageType = "text"
	TypeFile     MessageType = "file"
	TypeImage    MessageType = "image"
	TypeAudio    MessageType = "audio"
	TypeVideo    MessageType = "video"
	TypeDocument MessageType = "document"
)

// Status is the delivery status of a message.
type Status string

const (
	StatusSending   Status = "sending"
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

// FileSharing is the attachment policy of a conversation.
type FileSharing struct {
	Enabled          bool     `json:"enabled"`
	MaxSizeBytes     int64    `json:"max_size_bytes"`
	AllowedMIMETypes []string `json:"allowed_mime_types"`
}

// Settings holds per-conversation retention and sharing options.
type Settings struct {
	RetentionDays int         `json:"retention_days"`
	AutoBackup    bool        `json:"auto_backup"`
	Encryption    bool        `json:"encryption"`
	FileSharing   FileSharing `json:"file_sharing"`
}

// DefaultSettings returns the settings applied to conversations created from
// inbound platform events.
func DefaultSettings() Settings {
	return Settings{
		RetentionDays: 365,
		AutoBackup:    true,
		Encryption:    false,
		FileSharing: FileSharing{
			Enabled:      true,
			MaxSizeBytes: 50 * 1024 * 1024,
			AllowedMIMETypes: []string{
				"image/*",
				"video/*",
				"audio/*",
				"application/pdf",
				"application/msword",
				"application/vnd.openxmlformats-officedocument.*",
				"text/plain",
			},
		},
	}
}

// Conversation is a stored conversation. Timestamps are unix milliseconds.
type Conversation struct {
	ID            string         `json:"id"`
	Kind          Kind           `json:"kind"`
	Name          string         `json:"name"`
	CreatedAt     int64          `json:"created_at"`
	UpdatedAt     int64          `json:"updated_at"`
	LastMessageID string         `json:"last_message_id,omitempty"`
	UnreadCount   int            `json:"unread_count"`
	Archived      bool           `json:"archived"`
	Muted         bool           `json:"muted"`
	Settings      Settings       `json:"settings"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ExternalID    string         `json:"external_id,omitempty"`
	DeletedAt     int64          `json:"deleted_at,omitempty"`
}

// Attachment is a file owned by exactly one message.
type Attachment struct {
	ID        string  `json:"id"`
	FileName  string  `json:"file_name"`
	Size      int64   `json:"size"`
	MIMEType  string  `json:"mime_type"`
	Extension string  `json:"extension,omitempty"`
	URL       string  `json:"url,omitempty"`
	LocalPath string  `json:"local_path,omitempty"`
	Thumbnail string  `json:"thumbnail,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
	Width     int     `json:"width,omitempty"`
	Height    int     `json:"height,omitempty"`
}

// Message is a stored message. ExternalID is the platform message id, empty
// for messages created internally.
type Message struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	SenderID       string         `json:"sender_id"`
	SenderName     string         `json:"sender_name"`
	RecipientID    string         `json:"recipient_id,omitempty"`
	RecipientName  string         `json:"recipient_name,omitempty"`
	Content        string         `json:"content"`
	Type           MessageType    `json:"type"`
	Timestamp      int64          `json:"timestamp"`
	EditedAt       int64          `json:"edited_at,omitempty"`
	IsEdited       bool           `json:"is_edited"`
	Status         Status         `json:"status"`
	Attachments    []Attachment   `json:"attachments,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	ThreadID       string         `json:"thread_id,omitempty"`
	ReplyToID      string         `json:"reply_to_id,omitempty"`
	IsDeleted      bool           `json:"is_deleted"`
	DeletedAt      int64          `json:"deleted_at,omitempty"`
	ExternalID     string         `json:"external_id,omitempty"`
}

// MessagePatch lists the mutable fields of a message. Nil fields are left
// untouched.
type MessagePatch struct {
	Content    *string
	EditedAt   *int64
	IsEdited   *bool
	Status     *Status
	SenderName *string
	Timestamp  *int64
}

// Case links a legal case to a conversation and the lawyer assigned to it.
type Case struct {
	ID             string
	Title          string
	ConversationID string
	LawyerID       string
}
