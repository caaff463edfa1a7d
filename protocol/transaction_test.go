package protocol

import (
	"bytes"
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/types"
)

var testChainID = types.HashBytes([]byte("stakeberry-test"))

func seedKey(b byte) (PublicKey, ed25519.PrivateKey) {
	seed := bytes.Repeat([]byte{b}, 32)
	pub, priv := KeyFromSeed(seed)
	return pub, priv
}

func testTransferTx() *SignedTransaction {
	return &SignedTransaction{
		Transaction: Transaction{
			RefBlockNum:    7,
			RefBlockPrefix: 0xdeadbeef,
			Expiration:     types.TimeFromUnix(1_700_000_060),
			Operations: []Operation{
				&TransferOperation{
					From:   "alice",
					To:     "bob",
					Amount: types.NewAsset(1000, "BERRY"),
					Memo:   "lunch",
				},
			},
		},
	}
}

func TestTransactionRoundTrip(t *testing.T) {
	tx := testTransferTx()
	pub, priv := seedKey(1)
	_ = pub
	require.NoError(t, tx.Sign(priv, testChainID))

	data, err := tx.MarshalCramberry()
	require.NoError(t, err)

	var got SignedTransaction
	require.NoError(t, got.UnmarshalCramberry(data))

	require.Equal(t, tx.RefBlockNum, got.RefBlockNum)
	require.Equal(t, tx.RefBlockPrefix, got.RefBlockPrefix)
	require.Equal(t, tx.Expiration, got.Expiration)
	require.Len(t, got.Operations, 1)
	op, ok := got.Operations[0].(*TransferOperation)
	require.True(t, ok)
	require.Equal(t, types.AccountName("alice"), op.From)
	require.Equal(t, types.NewAsset(1000, "BERRY"), op.Amount)
	require.Len(t, got.Signatures, 1)

	id1, err := tx.ID()
	require.NoError(t, err)
	id2, err := got.ID()
	require.NoError(t, err)
	require.True(t, id1.Equal(id2))
}

func TestTransactionValidate(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		tx := &Transaction{}
		require.Error(t, tx.Validate())
	})

	t.Run("virtual op rejected", func(t *testing.T) {
		tx := &Transaction{Operations: []Operation{&InterestOperation{Owner: "alice"}}}
		err := tx.Validate()
		require.Error(t, err)
		require.True(t, types.IsValidation(err))
	})

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, testTransferTx().Validate())
	})
}

func TestSignedKeys(t *testing.T) {
	tx := testTransferTx()
	_, priv1 := seedKey(1)
	_, priv2 := seedKey(2)
	require.NoError(t, tx.Sign(priv1, testChainID))
	require.NoError(t, tx.Sign(priv2, testChainID))

	keys, err := tx.SignedKeys(testChainID)
	require.NoError(t, err)
	require.Len(t, keys, 2)

	t.Run("duplicate signature rejected", func(t *testing.T) {
		dup := testTransferTx()
		require.NoError(t, dup.Sign(priv1, testChainID))
		require.NoError(t, dup.Sign(priv1, testChainID))
		_, err := dup.SignedKeys(testChainID)
		require.Error(t, err)
	})

	t.Run("wrong chain id rejected", func(t *testing.T) {
		_, err := tx.SignedKeys(types.HashBytes([]byte("other-chain")))
		require.Error(t, err)
	})

	t.Run("tampered payload rejected", func(t *testing.T) {
		bad := testTransferTx()
		require.NoError(t, bad.Sign(priv1, testChainID))
		bad.Operations[0].(*TransferOperation).Amount.Amount = 2000
		_, err := bad.SignedKeys(testChainID)
		require.Error(t, err)
	})
}

func TestVerifyAuthority(t *testing.T) {
	alicePub, alicePriv := seedKey(10)
	aliceOwnerPub, aliceOwnerPriv := seedKey(11)
	strangerPub, strangerPriv := seedKey(12)
	_ = strangerPub

	getActive := func(name types.AccountName) (Authority, error) {
		if name == "alice" {
			return NewAuthority(alicePub), nil
		}
		return Authority{}, types.Validationf("unknown account %s", name)
	}
	getOwner := func(name types.AccountName) (Authority, error) {
		if name == "alice" {
			return NewAuthority(aliceOwnerPub), nil
		}
		return Authority{}, types.Validationf("unknown account %s", name)
	}

	t.Run("active key satisfies", func(t *testing.T) {
		tx := testTransferTx()
		require.NoError(t, tx.Sign(alicePriv, testChainID))
		require.NoError(t, tx.VerifyAuthority(testChainID, getOwner, getActive))
	})

	t.Run("owner key satisfies active requirement", func(t *testing.T) {
		tx := testTransferTx()
		require.NoError(t, tx.Sign(aliceOwnerPriv, testChainID))
		require.NoError(t, tx.VerifyAuthority(testChainID, getOwner, getActive))
	})

	t.Run("stranger key fails", func(t *testing.T) {
		tx := testTransferTx()
		require.NoError(t, tx.Sign(strangerPriv, testChainID))
		err := tx.VerifyAuthority(testChainID, getOwner, getActive)
		require.Error(t, err)
		require.True(t, types.IsValidation(err))
	})
}

func TestAuthoritySatisfied(t *testing.T) {
	k1, _ := seedKey(21)
	k2, _ := seedKey(22)
	k3, _ := seedKey(23)

	t.Run("threshold over keys", func(t *testing.T) {
		auth := Authority{
			WeightThreshold: 2,
			KeyAuths:        []KeyAuth{{Key: k1, Weight: 1}, {Key: k2, Weight: 1}},
		}
		require.False(t, auth.Satisfied([]PublicKey{k1}, nil))
		require.True(t, auth.Satisfied([]PublicKey{k1, k2}, nil))
	})

	t.Run("account member recursion", func(t *testing.T) {
		inner := NewAuthority(k3)
		auth := Authority{
			WeightThreshold: 1,
			AccountAuths:    []AccountAuth{{Account: "helper", Weight: 1}},
		}
		getActive := func(name types.AccountName) (Authority, error) {
			if name == "helper" {
				return inner, nil
			}
			return Authority{}, types.Validationf("unknown")
		}
		require.True(t, auth.Satisfied([]PublicKey{k3}, getActive))
		require.False(t, auth.Satisfied([]PublicKey{k1}, getActive))
	})

	t.Run("recursion depth bounded", func(t *testing.T) {
		// A key two account hops down still counts; the third hop is
		// cut by the depth limit.
		auths := map[types.AccountName]Authority{
			"a": {WeightThreshold: 1, AccountAuths: []AccountAuth{{Account: "b", Weight: 1}}},
			"b": {WeightThreshold: 1, AccountAuths: []AccountAuth{{Account: "c", Weight: 1}}},
			"c": {WeightThreshold: 1, AccountAuths: []AccountAuth{{Account: "d", Weight: 1}}},
			"d": NewAuthority(k1),
		}
		getActive := func(name types.AccountName) (Authority, error) {
			return auths[name], nil
		}
		require.True(t, auths["b"].Satisfied([]PublicKey{k1}, getActive))
		require.False(t, auths["a"].Satisfied([]PublicKey{k1}, getActive))
	})
}

func TestAuthorityValidate(t *testing.T) {
	k1, _ := seedKey(31)

	t.Run("zero threshold", func(t *testing.T) {
		a := Authority{WeightThreshold: 0, KeyAuths: []KeyAuth{{Key: k1, Weight: 1}}}
		require.Error(t, a.Validate())
	})

	t.Run("unreachable threshold", func(t *testing.T) {
		a := Authority{WeightThreshold: 5, KeyAuths: []KeyAuth{{Key: k1, Weight: 1}}}
		require.Error(t, a.Validate())
		require.True(t, a.IsImpossible())
	})

	t.Run("unsorted accounts", func(t *testing.T) {
		a := Authority{
			WeightThreshold: 1,
			AccountAuths: []AccountAuth{
				{Account: "bob", Weight: 1},
				{Account: "alice", Weight: 1},
			},
		}
		require.Error(t, a.Validate())
		a.Normalize()
		require.NoError(t, a.Validate())
	})
}
