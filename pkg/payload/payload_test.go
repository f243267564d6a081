package payload_test

import (
	"testing"

	"github.com/certen/period-host/pkg/payload"
	"github.com/certen/period-host/pkg/payloadregistry"
	"github.com/certen/period-host/pkg/wire"
)

const greetTag = "test.greet.v1"

type greetPayload struct {
	sender  string
	message string
}

func (p *greetPayload) Sender() string { return p.sender }
func (p *greetPayload) Tag() string    { return greetTag }
func (p *greetPayload) Data() wire.Map {
	return wire.Map{"message": wire.String(p.message)}
}

type greetSchema struct{}

func (greetSchema) New(sender string, data wire.Map) (payloadregistry.Payload, error) {
	msg, _ := data["message"].AsString()
	return &greetPayload{sender: sender, message: msg}, nil
}

func init() {
	if err := payloadregistry.Register(greetTag, greetSchema{}); err != nil {
		panic(err)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	p := &greetPayload{sender: "0xalice", message: "hello"}

	encoded, err := payload.Encode(p)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	decoded, err := payload.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if !payload.Equal(p, decoded) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", decoded, p)
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	m := wire.Map{
		"transaction_type": wire.String("test.nonexistent.v1"),
		"sender":           wire.String("0xalice"),
	}
	encoded, err := wire.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := payload.Decode(encoded); err == nil {
		t.Fatal("expected decode of an unregistered tag to fail")
	}
}

func TestSchemaReconstructsFromData(t *testing.T) {
	p := &greetPayload{sender: "0xbob", message: "gm"}
	reconstructed, err := greetSchema{}.New(p.Sender(), p.Data())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !payload.Equal(p, reconstructed) {
		t.Fatalf("Schema.New(sender, data) did not reconstruct an equal payload")
	}
}
