package mailcrypt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodec_SealOpen(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	require.NoError(t, err)

	t.Run("加密后可还原明文", func(t *testing.T) {
		for _, body := range []string{"hello", "", "你好，suimail", strings.Repeat("x", 4096)} {
			envelope, err := codec.Seal([]byte(body))
			require.NoError(t, err)

			plaintext, err := codec.Open(envelope)
			require.NoError(t, err)
			assert.Equal(t, body, string(plaintext))
		}
	})

	t.Run("信封携带唯一性后缀", func(t *testing.T) {
		envelope, err := codec.Seal([]byte("same body"))
		require.NoError(t, err)
		assert.Contains(t, envelope, Delimiter)

		// 后缀在分隔符之后且非空
		parts := strings.SplitN(envelope, Delimiter, 2)
		require.Len(t, parts, 2)
		assert.NotEmpty(t, parts[1])
	})

	t.Run("相同明文两次加密产生不同信封", func(t *testing.T) {
		first, err := codec.Seal([]byte("identical"))
		require.NoError(t, err)
		second, err := codec.Seal([]byte("identical"))
		require.NoError(t, err)

		assert.NotEqual(t, first, second)

		// 两个信封都能解回同一明文
		p1, err := codec.Open(first)
		require.NoError(t, err)
		p2, err := codec.Open(second)
		require.NoError(t, err)
		assert.Equal(t, p1, p2)
	})
}

func TestCodec_OpenErrors(t *testing.T) {
	codec, err := NewCodec("unit-test-secret")
	require.NoError(t, err)

	t.Run("非法base64返回解码错误", func(t *testing.T) {
		_, err := codec.Open("not base64 at all%%%" + Delimiter + "123")
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("信封过短返回解码错误", func(t *testing.T) {
		_, err := codec.Open("YWJj" + Delimiter + "123")
		assert.ErrorIs(t, err, ErrDecode)
	})

	t.Run("密钥不匹配返回解码错误", func(t *testing.T) {
		other, err := NewCodec("a-different-secret")
		require.NoError(t, err)

		envelope, err := other.Seal([]byte("secret body"))
		require.NoError(t, err)

		_, err = codec.Open(envelope)
		assert.ErrorIs(t, err, ErrDecode)
	})
}

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec("")
	assert.ErrorIs(t, err, ErrEmptySecret)
}
