package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFile(t *testing.T) {
	valid := []string{
		"model.safetensors",
		"model-00001-of-00002.safetensors",
		"unet/diffusion_pytorch_model.safetensors",
	}
	for _, name := range valid {
		assert.NoError(t, ValidateFile(name), name)
	}

	invalid := []string{
		"",
		"/etc/passwd",
		"../model.safetensors",
		"a/../../b",
		"a//b",
		"./model.safetensors",
		`sub\model.safetensors`,
		"dir/",
	}
	for _, name := range invalid {
		assert.Error(t, ValidateFile(name), name)
	}
}

func TestNormalizeETag(t *testing.T) {
	assert.Equal(t, "abc123", NormalizeETag(`"abc123"`))
	assert.Equal(t, "abc123", NormalizeETag(`W/"abc123"`))
	assert.Equal(t, "abc123", NormalizeETag(` abc123 `))
	assert.Equal(t, "", NormalizeETag(`""`))
}

func TestValidateRepo(t *testing.T) {
	assert.NoError(t, ValidateRepo("gpt2"))
	assert.NoError(t, ValidateRepo("mistralai/Mistral-7B-v0.1"))

	for _, r := range []string{"", "a/b/c", "/x", "org/", "../x", "org/my model"} {
		assert.Error(t, ValidateRepo(r), r)
	}
}
