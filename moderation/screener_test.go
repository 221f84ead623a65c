package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Screen_Masks_Banned_Words(t *testing.T) {
	req := require.New(t)

	screener, err := NewScreener([]string{"scam"}, '*')
	req.NoError(err)

	verdict := screener.Screen("this offer is a scam, trust me")
	req.True(verdict.Masked)
	req.Equal("this offer is a ****, trust me", verdict.Body)
}

func Test_Screen_Defeats_Leet_Spelling(t *testing.T) {
	req := require.New(t)

	screener, err := NewScreener([]string{"scam"}, '*')
	req.NoError(err)

	verdict := screener.Screen("总之 this is a 5c4m offer")
	req.True(verdict.Masked)
	req.NotContains(verdict.Body, "5c4m")
}

func Test_Screen_Without_Banned_Words_Is_Passthrough(t *testing.T) {
	req := require.New(t)

	screener, err := NewScreener(nil, '*')
	req.NoError(err)

	body := "bonjour, est-ce que le service est toujours disponible ?"
	verdict := screener.Screen(body)
	req.False(verdict.Masked)
	req.Equal(body, verdict.Body)
	req.Equal("fr", verdict.Lang)
}
