package store

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/zeebo/blake3"
)

// Kind tags the entity family a key belongs to.
type Kind string

const (
	KindConfig            Kind = "config"
	KindStream            Kind = "stream"
	KindSubscriberStreams Kind = "subscriber_streams"
	KindCreatorStreams    Kind = "creator_streams"
	KindActivePair        Kind = "active_pair"
	KindActiveCount       Kind = "active_count"
)

// Kinds lists every key kind.
func Kinds() []Kind {
	return []Kind{
		KindConfig,
		KindStream,
		KindSubscriberStreams,
		KindCreatorStreams,
		KindActivePair,
		KindActiveCount,
	}
}

// Key addresses one persisted value.
type Key struct {
	Kind Kind
	ID   string
}

// String renders the key as "kind/id", the form backends use as primary key.
func (k Key) String() string {
	if k.ID == "" {
		return string(k.Kind)
	}
	return string(k.Kind) + "/" + k.ID
}

// ParseKey reverses Key.String.
func ParseKey(s string) (Key, error) {
	kind, id, _ := strings.Cut(s, "/")
	for _, k := range Kinds() {
		if string(k) == kind {
			return Key{Kind: k, ID: id}, nil
		}
	}
	return Key{}, fmt.Errorf("store: unknown key kind in %q", s)
}

// ConfigKey addresses the global configuration record.
func ConfigKey() Key { return Key{Kind: KindConfig} }

// StreamKey addresses a stream by id.
func StreamKey(id uint64) Key {
	return Key{Kind: KindStream, ID: strconv.FormatUint(id, 10)}
}

// SubscriberStreamsKey addresses the ids an address subscribed with.
func SubscriberStreamsKey(addr string) Key {
	return Key{Kind: KindSubscriberStreams, ID: addr}
}

// CreatorStreamsKey addresses the ids an address received.
func CreatorStreamsKey(addr string) Key {
	return Key{Kind: KindCreatorStreams, ID: addr}
}

// ActivePairKey addresses the active-stream marker for a (subscriber,
// creator) pair. The id is a BLAKE3 digest of both addresses, which keeps
// it fixed-width whatever the address encoding.
func ActivePairKey(subscriber, creator string) Key {
	h := blake3.New()
	_, _ = h.WriteString(subscriber) //nolint:errcheck // hash writes never fail
	_, _ = h.Write([]byte{0})        //nolint:errcheck // hash writes never fail
	_, _ = h.WriteString(creator)    //nolint:errcheck // hash writes never fail
	return Key{Kind: KindActivePair, ID: hex.EncodeToString(h.Sum(nil))}
}

// ActiveCountKey addresses a creator's active-subscriber count.
func ActiveCountKey(creator string) Key {
	return Key{Kind: KindActiveCount, ID: creator}
}
