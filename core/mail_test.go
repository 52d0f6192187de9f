package core

import (
	"io/fs"
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appfs "github.com/trezcool/pinkconnect/fs"
)

type recordingLogger struct {
	errors []string
}

func (*recordingLogger) Debug(string, ...interface{}) {}
func (*recordingLogger) Info(string, ...interface{})  {}
func (*recordingLogger) Warn(string, ...interface{})  {}
func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (*recordingLogger) Fatal(string, ...interface{}) {}

func testConfig() *Config {
	conf := NewConfig()
	conf.TestMode = true
	conf.FrontendBaseURL = "pinkconnect://"
	return conf
}

func TestEmbeddedLayouts(t *testing.T) {
	for _, name := range []string{"_base.txt", "_base.gohtml"} {
		t.Run(name, func(t *testing.T) {
			_, err := fs.Stat(appfs.FS, emailTemplatesDir+"/"+name)
			assert.NoError(t, err)
		})
	}
}

func TestParseEmailTemplates(t *testing.T) {
	logger := new(recordingLogger)
	ParseEmailTemplates(testConfig(), logger)
	require.Empty(t, logger.errors)

	tests := []struct {
		name string
		ext  string
	}{
		{name: "confirm_signup", ext: ".txt"},
		{name: "confirm_signup", ext: ".gohtml"},
		{name: "password_reset", ext: ".txt"},
		{name: "password_reset", ext: ".gohtml"},
	}
	for _, tt := range tests {
		t.Run(tt.name+tt.ext, func(t *testing.T) {
			msg := EmailMessage{TemplateName: tt.name}
			_, ok := msg.getTemplate(tt.ext)
			assert.True(t, ok)
		})
	}

	_, ok := templates["_base"]
	assert.False(t, ok, "layouts must not be registered as templates")
}

func TestEmailMessage_Render(t *testing.T) {
	ParseEmailTemplates(testConfig(), new(recordingLogger))

	tests := []struct {
		name     string
		msg      EmailMessage
		wantText string
		wantHTML string
	}{
		{
			name:     "plain body",
			msg:      EmailMessage{To: []mail.Address{{Address: "a@pink.cd"}}, BodyStr: "hello"},
			wantText: "hello",
		},
		{
			name: "password reset",
			msg: EmailMessage{
				To:           []mail.Address{{Address: "mama@pink.cd"}},
				TemplateName: "password_reset",
				TemplateData: map[string]string{"Name": "Mama Amani", "UID": "dTE", "Token": "tok-en", "RedirectTo": "pinkconnect://auth/reset-password"},
			},
			wantText: "pinkconnect://auth/reset-password?uid=dTE&token=tok-en",
			wantHTML: `href="pinkconnect://auth/reset-password?uid=dTE&token=tok-en"`,
		},
		{
			name: "confirm signup",
			msg: EmailMessage{
				To:           []mail.Address{{Address: "mwalimu@pink.cd"}},
				TemplateName: "confirm_signup",
				TemplateData: map[string]string{"Name": "Mwalimu", "UID": "dTI", "Token": "con-firm"},
			},
			wantText: "con-firm",
			wantHTML: `href="pinkconnect://auth/confirm?uid=dTI&token=con-firm"`,
		},
		{
			name: "unknown template",
			msg:  EmailMessage{To: []mail.Address{{Address: "a@pink.cd"}}, TemplateName: "lol"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.msg
			require.NoError(t, msg.Render())
			assert.Contains(t, msg.TextContent, tt.wantText)
			assert.Contains(t, msg.HTMLContent, tt.wantHTML)
			assert.Equal(t, tt.wantText != "" || tt.wantHTML != "", msg.HasContent())
		})
	}
}
