package protocol

import (
	"bytes"
	"sort"

	"github.com/blockberries/stakeberry/types"
)

// MaxAuthorityMembership bounds the total number of keys and accounts
// one authority may list.
const MaxAuthorityMembership = 10

// MaxSigCheckDepth bounds recursion through account-level authorities
// when satisfying a threshold.
const MaxSigCheckDepth = 2

// KeyAuth grants a key a weight toward an authority threshold.
type KeyAuth struct {
	Key    PublicKey `json:"key"`
	Weight uint16    `json:"weight"`
}

// AccountAuth grants another account's active authority a weight.
type AccountAuth struct {
	Account types.AccountName `json:"account"`
	Weight  uint16            `json:"weight"`
}

// Authority is a weighted threshold over keys and accounts. Members
// are kept sorted so encoding stays canonical.
type Authority struct {
	WeightThreshold uint32        `json:"weight_threshold"`
	AccountAuths    []AccountAuth `json:"account_auths"`
	KeyAuths        []KeyAuth     `json:"key_auths"`
}

// NewAuthority builds a single-key authority with threshold 1.
func NewAuthority(key PublicKey) Authority {
	return Authority{
		WeightThreshold: 1,
		KeyAuths:        []KeyAuth{{Key: key, Weight: 1}},
	}
}

// Normalize sorts members into canonical order.
func (a *Authority) Normalize() {
	sort.Slice(a.AccountAuths, func(i, j int) bool {
		return a.AccountAuths[i].Account < a.AccountAuths[j].Account
	})
	sort.Slice(a.KeyAuths, func(i, j int) bool {
		return bytes.Compare(a.KeyAuths[i].Key, a.KeyAuths[j].Key) < 0
	})
}

// Validate checks structural sanity: membership bounds, sorted unique
// members, valid keys and names, and a threshold that some combination
// of members can actually reach.
func (a Authority) Validate() error {
	if len(a.AccountAuths)+len(a.KeyAuths) > MaxAuthorityMembership {
		return types.Validationf("authority has %d members, max %d",
			len(a.AccountAuths)+len(a.KeyAuths), MaxAuthorityMembership)
	}
	var sum uint64
	for i, ka := range a.KeyAuths {
		if !ka.Key.IsValid() {
			return types.Validationf("authority key %d invalid", i)
		}
		if i > 0 && bytes.Compare(a.KeyAuths[i-1].Key, ka.Key) >= 0 {
			return types.Validationf("authority keys not sorted and unique")
		}
		sum += uint64(ka.Weight)
	}
	for i, aa := range a.AccountAuths {
		if !aa.Account.IsValid() {
			return types.Validationf("authority account %q invalid", aa.Account)
		}
		if i > 0 && a.AccountAuths[i-1].Account >= aa.Account {
			return types.Validationf("authority accounts not sorted and unique")
		}
		sum += uint64(aa.Weight)
	}
	if a.WeightThreshold == 0 {
		return types.Validationf("authority threshold is zero")
	}
	if sum < uint64(a.WeightThreshold) {
		return types.Validationf("authority threshold %d unreachable, total weight %d",
			a.WeightThreshold, sum)
	}
	return nil
}

// IsImpossible reports whether no set of signatures can ever satisfy
// the authority. Setting an impossible owner authority locks an
// account, which account recovery relies on being able to detect.
func (a Authority) IsImpossible() bool {
	var sum uint64
	for _, ka := range a.KeyAuths {
		sum += uint64(ka.Weight)
	}
	for _, aa := range a.AccountAuths {
		sum += uint64(aa.Weight)
	}
	return sum < uint64(a.WeightThreshold)
}

// KeyWeight returns the weight granted to key, or zero.
func (a Authority) KeyWeight(key PublicKey) uint16 {
	for _, ka := range a.KeyAuths {
		if ka.Key.Equal(key) {
			return ka.Weight
		}
	}
	return 0
}

// AuthorityGetter resolves an account's authority of one level.
// Lookups that fail return an error and fail the surrounding check.
type AuthorityGetter func(name types.AccountName) (Authority, error)

// Satisfied reports whether the given signing keys meet the authority
// threshold, recursing into account members up to MaxSigCheckDepth via
// getActive.
func (a Authority) Satisfied(keys []PublicKey, getActive AuthorityGetter) bool {
	return a.satisfied(keys, getActive, 0)
}

func (a Authority) satisfied(keys []PublicKey, getActive AuthorityGetter, depth int) bool {
	var total uint64
	for _, ka := range a.KeyAuths {
		for _, k := range keys {
			if ka.Key.Equal(k) {
				total += uint64(ka.Weight)
				break
			}
		}
		if total >= uint64(a.WeightThreshold) {
			return true
		}
	}
	for _, aa := range a.AccountAuths {
		if depth >= MaxSigCheckDepth || getActive == nil {
			continue
		}
		inner, err := getActive(aa.Account)
		if err != nil {
			continue
		}
		if inner.satisfied(keys, getActive, depth+1) {
			total += uint64(aa.Weight)
		}
		if total >= uint64(a.WeightThreshold) {
			return true
		}
	}
	return total >= uint64(a.WeightThreshold)
}
