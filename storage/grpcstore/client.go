package grpcstore

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"odinprotocol.io/odin/cidutil"
	"odinprotocol.io/odin/storage"
)

// Client implements storage.Store over a Store gRPC service.
//
// The remote service is content-addressed, so Put requires key ==
// cidutil.Sum(data); arbitrary keys fail with ErrInvalidKey.
type Client struct {
	cc     *grpc.ClientConn
	client StoreClient

	// Timeout applies per RPC when non-zero and the caller's context has
	// no earlier deadline.
	Timeout time.Duration
}

var _ storage.Store = (*Client)(nil)

type DialOptions struct {
	// Timeout applies to the initial dial when non-zero.
	Timeout time.Duration

	// MaxMsgBytes sets both send/recv max sizes when non-zero.
	MaxMsgBytes int
}

func Dial(target string, opts DialOptions) (*Client, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	}
	if opts.MaxMsgBytes > 0 {
		dialOpts = append(dialOpts,
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(opts.MaxMsgBytes),
				grpc.MaxCallSendMsgSize(opts.MaxMsgBytes),
			),
		)
	}

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	cc, err := grpc.DialContext(ctx, target, dialOpts...)
	if err != nil {
		return nil, err
	}
	return &Client{cc: cc, client: NewStoreClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(ctx context.Context, key string, data []byte) error {
	if key != cidutil.Sum(data) {
		return storage.ErrInvalidKey
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return mapRPC(err)
	}
	if reply.GetValue() != key {
		return storage.ErrCIDMismatch
	}
	return nil
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	if err := cidutil.Validate(key); err != nil {
		return nil, storage.ErrInvalidKey
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Get(ctx, wrapperspb.String(key))
	if err != nil {
		return nil, mapRPC(err)
	}
	b := reply.GetValue()
	if !cidutil.Matches(key, b) {
		return nil, storage.ErrCIDMismatch
	}
	return b, nil
}

func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	if err := cidutil.Validate(key); err != nil {
		return false, storage.ErrInvalidKey
	}
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.Exists(ctx, wrapperspb.String(key))
	if err != nil {
		return false, mapRPC(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) List(ctx context.Context, prefix string) ([]string, error) {
	ctx, cancel := c.ctx(ctx)
	defer cancel()

	reply, err := c.client.List(ctx, wrapperspb.String(prefix))
	if err != nil {
		return nil, mapRPC(err)
	}
	var out []string
	for _, v := range reply.GetValues() {
		out = append(out, v.GetStringValue())
	}
	return out, nil
}

func (c *Client) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	if c.Timeout <= 0 {
		return context.WithCancel(parent)
	}
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, c.Timeout)
}
