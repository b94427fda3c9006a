package nest

import (
	"context"
	"crypto/tls"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/metadata"
)

const recognizeMethod = "/com.nbp.cdncp.nest.grpc.proto.v1.NestService/recognize"

var recognizeDesc = grpc.StreamDesc{
	StreamName:    "recognize",
	ClientStreams: true,
	ServerStreams: true,
}

type marshaler interface {
	Marshal() ([]byte, error)
}

type unmarshaler interface {
	Unmarshal([]byte) error
}

// wireCodec routes grpc message (de)serialization through the hand-written
// protowire code in nest.go.
type wireCodec struct{}

func (wireCodec) Name() string { return "proto" }

func (wireCodec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(marshaler)
	if !ok {
		return nil, fmt.Errorf("nest: cannot marshal %T", v)
	}
	return m.Marshal()
}

func (wireCodec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(unmarshaler)
	if !ok {
		return fmt.Errorf("nest: cannot unmarshal into %T", v)
	}
	return m.Unmarshal(data)
}

// Client owns the secure channel to the recognition service. One client
// serves one session at a time.
type Client struct {
	conn      *grpc.ClientConn
	secretKey string
}

// Dial opens a TLS channel to the recognition service. The secret key is
// attached as bearer metadata on every recognize call.
func Dial(host string, port int, secretKey string) (*Client, error) {
	conn, err := grpc.NewClient(
		fmt.Sprintf("%s:%d", host, port),
		grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{})),
	)
	if err != nil {
		return nil, fmt.Errorf("dial recognition service: %w", err)
	}
	return &Client{conn: conn, secretKey: secretKey}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// RecognizeStream is the bidirectional recognize call: frames out,
// responses in, both flowing independently until CloseSend and the server's
// trailing responses drain.
type RecognizeStream interface {
	Send(*NestRequest) error
	Recv() (*NestResponse, error)
	CloseSend() error
}

// Recognize opens the bidirectional stream. The caller bounds its lifetime
// through ctx; expiry surfaces as a transport error on Recv.
func (c *Client) Recognize(ctx context.Context) (RecognizeStream, error) {
	ctx = metadata.AppendToOutgoingContext(
		ctx,
		"authorization", "Bearer "+c.secretKey,
	)
	s, err := c.conn.NewStream(
		ctx,
		&recognizeDesc,
		recognizeMethod,
		grpc.ForceCodec(wireCodec{}),
	)
	if err != nil {
		return nil, fmt.Errorf("open recognize stream: %w", err)
	}
	return &recognizeStream{s}, nil
}

type recognizeStream struct {
	grpc.ClientStream
}

func (s *recognizeStream) Send(req *NestRequest) error {
	return s.SendMsg(req)
}

func (s *recognizeStream) Recv() (*NestResponse, error) {
	resp := new(NestResponse)
	if err := s.RecvMsg(resp); err != nil {
		return nil, err
	}
	return resp, nil
}
