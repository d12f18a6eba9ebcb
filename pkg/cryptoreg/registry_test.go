package cryptoreg

import (
	"context"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"testing"

	"sdvc/pkg/logger"
	"sdvc/pkg/model"
	"sdvc/pkg/securemem"
	"sdvc/pkg/tag"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New(logger.NewSimple("test"))
	require.NoError(t, RegisterSoftwareBackend(r))
	return r
}

func keyTag(t *testing.T, algorithm, purpose int, extra map[tag.Kind]int) tag.Tag {
	t.Helper()
	values := map[tag.Kind]int{
		tag.KindAlgorithm: algorithm,
		tag.KindPurpose:   purpose,
	}
	for k, v := range extra {
		values[k] = v
	}
	return tag.MustNew(values)
}

func TestEd25519SignVerify(t *testing.T) {
	r := newTestRegistry(t)
	pool := securemem.NewPool(nil)
	ctx := context.Background()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	privMem, err := securemem.NewPrivateKey(pool, priv, keyTag(t, tag.AlgorithmEd25519, tag.PurposeSigning, nil))
	require.NoError(t, err)
	defer privMem.Release()

	pubMem, err := securemem.NewPublicKey(pool, pub, keyTag(t, tag.AlgorithmEd25519, tag.PurposeVerification, nil))
	require.NoError(t, err)
	defer pubMem.Release()

	data := []byte("the data to sign")

	sig, err := r.Sign(ctx, privMem, data, pool)
	require.NoError(t, err)
	defer sig.Release()

	ok, err := r.Verify(ctx, data, sig, pubMem)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.Verify(ctx, []byte("tampered data"), sig, pubMem)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestECDSASignVerify(t *testing.T) {
	r := newTestRegistry(t)
	pool := securemem.NewPool(nil)
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	privMem, err := securemem.NewPrivateKey(pool, privDER,
		keyTag(t, tag.AlgorithmP256, tag.PurposeSigning, map[tag.Kind]int{tag.KindEncodingScheme: tag.EncodingPkcs8}))
	require.NoError(t, err)
	defer privMem.Release()

	pubRaw := elliptic.Marshal(elliptic.P256(), key.PublicKey.X, key.PublicKey.Y)
	pubMem, err := securemem.NewPublicKey(pool, pubRaw,
		keyTag(t, tag.AlgorithmP256, tag.PurposeVerification, map[tag.Kind]int{tag.KindEncodingScheme: tag.EncodingEcUncompressed}))
	require.NoError(t, err)
	defer pubMem.Release()

	data := []byte("payload")

	sig, err := r.Sign(ctx, privMem, data, pool)
	require.NoError(t, err)
	defer sig.Release()

	sigBytes, err := sig.Bytes()
	require.NoError(t, err)
	assert.Len(t, sigBytes, 64)

	ok, err := r.Verify(ctx, data, sig, pubMem)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDispatchErrors(t *testing.T) {
	r := newTestRegistry(t)
	pool := securemem.NewPool(nil)
	ctx := context.Background()

	t.Run("no_backend_registered", func(t *testing.T) {
		privMem, err := securemem.NewPrivateKey(pool, []byte{1, 2, 3},
			keyTag(t, tag.AlgorithmBls12381G1, tag.PurposeSigning, nil))
		require.NoError(t, err)
		defer privMem.Release()

		_, err = r.Sign(ctx, privMem, []byte("data"), pool)
		assert.ErrorIs(t, err, model.ErrNoBackendRegistered)
	})

	t.Run("purpose_mismatch", func(t *testing.T) {
		// A verification-tagged key cannot sign.
		privMem, err := securemem.NewPrivateKey(pool, []byte{1, 2, 3},
			keyTag(t, tag.AlgorithmEd25519, tag.PurposeVerification, nil))
		require.NoError(t, err)
		defer privMem.Release()

		_, err = r.Sign(ctx, privMem, []byte("data"), pool)
		assert.ErrorIs(t, err, model.ErrUnsupportedAlgorithm)
	})
}

func TestRegistrationRules(t *testing.T) {
	r := New(logger.NewSimple("test"))

	noop := func(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
		return nil, nil
	}

	require.NoError(t, r.RegisterSign(tag.AlgorithmEd25519, tag.PurposeSigning, 0, noop))

	t.Run("duplicate_rejected", func(t *testing.T) {
		err := r.RegisterSign(tag.AlgorithmEd25519, tag.PurposeSigning, 0, noop)
		assert.ErrorIs(t, err, model.ErrDuplicateRegistration)
	})

	t.Run("frozen_after_first_dispatch", func(t *testing.T) {
		pool := securemem.NewPool(nil)
		privMem, err := securemem.NewPrivateKey(pool, []byte{1},
			keyTag(t, tag.AlgorithmEd25519, tag.PurposeSigning, nil))
		require.NoError(t, err)
		defer privMem.Release()

		_, _ = r.Sign(context.Background(), privMem, []byte("x"), pool)

		err = r.RegisterSign(tag.AlgorithmP256, tag.PurposeSigning, 0, noop)
		assert.ErrorIs(t, err, model.ErrRegistryFrozen)
	})
}

func TestMaterialSemanticsRouting(t *testing.T) {
	r := New(logger.NewSimple("test"))
	pool := securemem.NewPool(nil)
	ctx := context.Background()

	var calledDirect, calledHandle bool

	direct := func(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
		calledDirect = true
		st := tag.MustNew(map[tag.Kind]int{tag.KindAlgorithm: tag.AlgorithmP256, tag.KindPurpose: tag.PurposeVerification})
		return securemem.NewSignature(pool, []byte{1}, st)
	}
	handle := func(ctx context.Context, priv *securemem.PrivateKeyMemory, data []byte, pool *securemem.Pool) (*securemem.Signature, error) {
		calledHandle = true
		st := tag.MustNew(map[tag.Kind]int{tag.KindAlgorithm: tag.AlgorithmP256, tag.KindPurpose: tag.PurposeVerification})
		return securemem.NewSignature(pool, []byte{2}, st)
	}

	require.NoError(t, r.RegisterSign(tag.AlgorithmP256, tag.PurposeSigning, tag.MaterialDirect, direct))
	require.NoError(t, r.RegisterSign(tag.AlgorithmP256, tag.PurposeSigning, tag.MaterialTpmHandle, handle))

	directKey, err := securemem.NewPrivateKey(pool, []byte("key"),
		keyTag(t, tag.AlgorithmP256, tag.PurposeSigning, map[tag.Kind]int{tag.KindMaterialSemantics: tag.MaterialDirect}))
	require.NoError(t, err)
	defer directKey.Release()

	handleKey, err := securemem.NewPrivateKey(pool, []byte("label"),
		keyTag(t, tag.AlgorithmP256, tag.PurposeSigning, map[tag.Kind]int{tag.KindMaterialSemantics: tag.MaterialTpmHandle}))
	require.NoError(t, err)
	defer handleKey.Release()

	sig, err := r.Sign(ctx, directKey, []byte("d"), pool)
	require.NoError(t, err)
	sig.Release()

	sig, err = r.Sign(ctx, handleKey, []byte("d"), pool)
	require.NoError(t, err)
	sig.Release()

	assert.True(t, calledDirect)
	assert.True(t, calledHandle)
}

func TestSelectionDeterminism(t *testing.T) {
	r := newTestRegistry(t)
	pool := securemem.NewPool(nil)
	ctx := context.Background()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	data := []byte("deterministic input")

	var first []byte
	for i := 0; i < 3; i++ {
		privMem, err := securemem.NewPrivateKey(pool, priv, keyTag(t, tag.AlgorithmEd25519, tag.PurposeSigning, nil))
		require.NoError(t, err)

		sig, err := r.Sign(ctx, privMem, data, pool)
		require.NoError(t, err)

		got, err := sig.Bytes()
		require.NoError(t, err)

		if first == nil {
			first = append([]byte(nil), got...)
		} else {
			// Ed25519 is deterministic, so the same backend and input
			// must produce identical bytes.
			assert.Equal(t, first, got)
		}

		sig.Release()
		privMem.Release()
	}
}
