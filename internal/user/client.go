package user

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/MikeMC777/ecom-ledger/internal/apperr"
	"github.com/MikeMC777/ecom-ledger/internal/httpx"
	pb "github.com/MikeMC777/ecom-ledger/internal/userpb"
)

// Resolver resolves request callers through the user service.
type Resolver struct {
	client *pb.Client
	conn   *grpc.ClientConn
}

// Dial creates a lazy client connection; RPCs wait for the service to come up.
func Dial(addr string) (*Resolver, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	return &Resolver{client: pb.NewClient(conn), conn: conn}, nil
}

func NewResolver(cc grpc.ClientConnInterface) *Resolver {
	return &Resolver{client: pb.NewClient(cc)}
}

func (r *Resolver) Resolve(ctx context.Context, userID string) (httpx.Principal, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	u, err := r.client.GetUser(ctx, userID, grpc.WaitForReady(true))
	if err != nil {
		switch status.Code(err) {
		case codes.NotFound, codes.InvalidArgument:
			return httpx.Principal{}, apperr.NotFound("user not found")
		default:
			return httpx.Principal{}, apperr.Internal("user service unavailable", err)
		}
	}
	return httpx.Principal{
		ID:      u.ID,
		Role:    u.Role,
		Blocked: u.IsBlocked || !u.IsActive,
	}, nil
}

func (r *Resolver) Close() error {
	if r.conn == nil {
		return nil
	}
	return r.conn.Close()
}
