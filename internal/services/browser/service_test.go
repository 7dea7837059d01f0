package browser

import (
	"testing"

	"github.com/fgeck/streamlit-waker/internal/models"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
)

func TestButtonXPath(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "plain text",
			text: "Yes, get this app back up!",
			want: "//button[text()='Yes, get this app back up!']",
		},
		{
			name: "single quote",
			text: "Don't sleep",
			want: `//button[text()="Don't sleep"]`,
		},
		{
			name: "both quotes",
			text: `It's "asleep"`,
			want: `//button[text()=concat('It', "'", 's "asleep"')]`,
		},
		{
			name: "trailing single quote",
			text: `say "hi'`,
			want: `//button[text()=concat('say "hi', "'")]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ButtonXPath(tt.text))
		})
	}
}

func TestNewLauncher_CIProfile(t *testing.T) {
	l := newLauncher(models.BrowserConfig{
		CI:            true,
		Headless:      true,
		NoSandbox:     true,
		DisableGPU:    true,
		DisableDevShm: true,
		WindowSize:    "1920,1080",
	})

	assert.True(t, l.Has(flags.Headless))
	assert.True(t, l.Has(flags.NoSandbox))
	assert.True(t, l.Has("disable-gpu"))
	assert.True(t, l.Has("disable-dev-shm-usage"))
	assert.Equal(t, "1920,1080", l.Get("window-size"))
	assert.Equal(t, "AutomationControlled", l.Get("disable-blink-features"))
	assert.False(t, l.Has("enable-automation"))
}

func TestNewLauncher_Windowed(t *testing.T) {
	l := newLauncher(models.BrowserConfig{})

	assert.False(t, l.Has(flags.Headless))
	assert.False(t, l.Has("disable-gpu"))
	assert.False(t, l.Has("window-size"))
	assert.Equal(t, "AutomationControlled", l.Get("disable-blink-features"))
}

func TestNewLauncher_Bin(t *testing.T) {
	l := newLauncher(models.BrowserConfig{Bin: "/usr/bin/chromium"})

	assert.Equal(t, "/usr/bin/chromium", l.Get(flags.Bin))
}

func TestRodSession_CloseWithoutBrowser(t *testing.T) {
	s := &RodSession{}

	assert.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
