package apiv1

import (
	"strings"
	"testing"

	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	if codec == nil {
		t.Fatalf("codec %q is not registered", CodecName)
	}
	if codec.Name() != CodecName {
		t.Fatalf("unexpected codec name %q", codec.Name())
	}
}

func TestCodec_PlainMessageUsesSnakeCase(t *testing.T) {
	codec := jsonCodec{}
	data, err := codec.Marshal(&CheckStockRequest{Items: []StockQuery{{SKU: "iphone_13", RequiredQuantity: 2}}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"sku_code":"iphone_13"`) {
		t.Fatalf("unexpected payload %s", data)
	}

	var decoded CheckStockRequest
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded.Items) != 1 || decoded.Items[0].RequiredQuantity != 2 {
		t.Fatalf("unexpected decoded request %+v", decoded)
	}
}

func TestCodec_MarshalError(t *testing.T) {
	if _, err := (jsonCodec{}).Marshal(make(chan int)); err == nil {
		t.Fatal("expected error for unsupported type")
	}
}

func TestCodec_UnmarshalError(t *testing.T) {
	var out PlaceOrderRequest
	if err := (jsonCodec{}).Unmarshal([]byte("{"), &out); err == nil {
		t.Fatalf("expected error for truncated payload")
	}
}
