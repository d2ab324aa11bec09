package app

import (
	"context"
	"errors"

	"github.com/newsletterlab/pulse/internal/domain/newsletter/entity"
	"github.com/newsletterlab/pulse/internal/domain/newsletter/ingest"
	"github.com/newsletterlab/pulse/internal/httpx/upstream/beehiiv"
)

// beehiivPlatformAdapter adapts beehiiv.Client to ingest.Platform
type beehiivPlatformAdapter struct {
	client *beehiiv.Client
}

func (a *beehiivPlatformAdapter) ListPosts(ctx context.Context, publicationID string, page, limit int) (*ingest.RemotePage, error) {
	list, err := a.client.ListPosts(ctx, beehiiv.ListPostsInput{
		PublicationID: publicationID,
		Page:          page,
		Limit:         limit,
	})
	if err != nil {
		return nil, upstreamError(err)
	}

	out := &ingest.RemotePage{
		Posts:      make([]ingest.RemotePost, 0, len(list.Data)),
		Page:       list.Page,
		TotalPages: list.TotalPages,
	}
	for _, p := range list.Data {
		out.Posts = append(out.Posts, remotePost(p))
	}
	return out, nil
}

func (a *beehiivPlatformAdapter) GetPost(ctx context.Context, publicationID, postID string) (*ingest.RemotePost, error) {
	p, err := a.client.GetPost(ctx, publicationID, postID)
	if err != nil {
		return nil, upstreamError(err)
	}
	rp := remotePost(*p)
	return &rp, nil
}

func (a *beehiivPlatformAdapter) GetPublication(ctx context.Context, publicationID string) (*ingest.RemotePublication, error) {
	pub, err := a.client.GetPublication(ctx, publicationID)
	if err != nil {
		return nil, upstreamError(err)
	}
	if pub.Stats == nil {
		return &ingest.RemotePublication{}, nil
	}

	st := pub.Stats
	return &ingest.RemotePublication{
		ActiveSubscriptions: st.ActiveSubscriptions,
		TotalSent:           st.TotalSent,
		TotalDelivered:      st.TotalDelivered,
		TotalUniqueOpened:   st.TotalUniqueOpened,
		TotalClicked:        st.TotalClicked,
		AverageOpenRate:     st.AverageOpenRate,
		AverageClickRate:    st.AverageClickRate,
	}, nil
}

func remotePost(p beehiiv.Post) ingest.RemotePost {
	rp := ingest.RemotePost{
		ID:          p.ID,
		Title:       p.Title,
		PublishedAt: p.PublishedAt(),
		ContentTags: p.ContentTags,
	}
	if p.Stats != nil && p.Stats.Email != nil {
		e := p.Stats.Email
		rp.Stats = &ingest.RemoteStats{
			Recipients:        e.Recipients,
			Delivered:         e.Delivered,
			Opens:             e.Opens,
			UniqueOpens:       e.UniqueOpens,
			UniqueClicks:      e.UniqueClicks,
			VerifiedClicks:    e.VerifiedClicks,
			Unsubscribes:      e.Unsubscribes,
			OpenRate:          e.OpenRate,
			ClickRate:         e.ClickRate,
			VerifiedClickRate: e.VerifiedClickRate,
		}
	}
	return rp
}

// upstreamError maps client API errors to the domain error so handlers can
// pick a status without importing the client package.
func upstreamError(err error) error {
	var apiErr *beehiiv.APIError
	if errors.As(err, &apiErr) {
		body := apiErr.Message
		if body == "" {
			body = apiErr.Body
		}
		return &entity.UpstreamError{Status: apiErr.Status, Body: body}
	}
	return err
}
