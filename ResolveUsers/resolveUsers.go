package ResolveUsers

import (
	"context"
	"log/slog"
	"sync"

	"github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"
)

const UnknownName = "Unknown"

type UsersApi interface {
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
}

// Resolve maps every distinct non-blank id to a display name, with one users.info lookup per
// id. A failed lookup resolves that id to UnknownName and leaves the others untouched. At most
// concurrency lookups are in flight; 1 (or less) resolves sequentially.
func Resolve(ctx context.Context, api UsersApi, ids []string, concurrency int) map[string]string {
	uniqueIds := dedupIds(ids)
	identities := make(map[string]string, len(uniqueIds))
	if len(uniqueIds) == 0 {
		return identities
	}

	if concurrency < 1 {
		concurrency = 1
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(concurrency)

	for _, userId := range uniqueIds {
		g.Go(func() error {
			name := lookupDisplayName(ctx, api, userId)
			mu.Lock()
			identities[userId] = name
			mu.Unlock()
			// failures are absorbed so one bad id never cancels the rest
			return nil
		})
	}
	_ = g.Wait()

	return identities
}

func lookupDisplayName(ctx context.Context, api UsersApi, userId string) string {
	userInfo, getUserInfoError := api.GetUserInfoContext(ctx, userId)
	if getUserInfoError != nil {
		slog.WarnContext(ctx, "ResolveUsers:lookupDisplayName#Error while fetching the user info",
			"user_id", userId,
			"error", getUserInfoError)
		return UnknownName
	}
	return DisplayName(userInfo)
}

// DisplayName prefers the profile display name, then the real name, then the handle.
func DisplayName(user *slack.User) string {
	if user == nil {
		return UnknownName
	}
	for _, candidate := range []string{user.Profile.DisplayName, user.RealName, user.Name} {
		if candidate != "" {
			return candidate
		}
	}
	return UnknownName
}

func dedupIds(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	uniqueIds := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		uniqueIds = append(uniqueIds, id)
	}
	return uniqueIds
}
