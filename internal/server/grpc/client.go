package grpc

import (
	"context"

	"github.com/dmitrijs2005/trainbook/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
)

// DiagnosticsClient calls the admin Diagnostics service.
type DiagnosticsClient struct {
	cc grpc.ClientConnInterface
}

func NewDiagnosticsClient(cc grpc.ClientConnInterface) *DiagnosticsClient {
	return &DiagnosticsClient{cc: cc}
}

// Dial opens a plaintext client connection to the admin endpoint.
func Dial(address string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	return grpc.NewClient(address, opts...)
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (c *DiagnosticsClient) Ping(ctx context.Context) (*PingResponse, error) {
	out := new(PingResponse)
	if err := c.cc.Invoke(ctx, pingMethod, &PingRequest{}, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DiagnosticsClient) ListSessions(ctx context.Context, accessToken string) (*ListSessionsResponse, error) {
	out := new(ListSessionsResponse)
	ctx = withAccessToken(ctx, accessToken)
	if err := c.cc.Invoke(ctx, listSessionsMethod, &ListSessionsRequest{}, out, grpc.CallContentSubtype(codecName)); err != nil {
		return nil, err
	}
	return out, nil
}
