package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/dmitrijs2005/soundcircle/internal/client/models"
	"github.com/dmitrijs2005/soundcircle/internal/client/session"
	"github.com/dmitrijs2005/soundcircle/internal/common"
)

// walletSubscription reads the server-sent-event stream of wallet changes.
type walletSubscription struct {
	updates chan models.WalletUpdate
	cancel  context.CancelFunc
	once    sync.Once
	done    chan struct{}
}

func (s *walletSubscription) Updates() <-chan models.WalletUpdate {
	return s.updates
}

func (s *walletSubscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// SubscribeWallet opens the realtime wallet stream for the signed-in user.
// The stream outlives ctx; it runs until Close is called or the server drops
// the connection.
func (c *Client) SubscribeWallet(ctx context.Context, userID string) (session.Subscription, error) {
	sess := c.currentSession()
	if sess == nil {
		return nil, common.ErrorUnauthorized
	}

	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/api/realtime/wallet", nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set(common.AccessTokenHeaderName, "Bearer "+sess.AccessToken)
	req.Header.Set("Accept", "text/event-stream")

	// no client timeout here: the stream is long-lived
	resp, err := (&http.Client{Transport: c.http.Transport}).Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		cancel()
		return nil, mapError(resp)
	}

	sub := &walletSubscription{
		updates: make(chan models.WalletUpdate),
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go func() {
		defer close(sub.done)
		defer close(sub.updates)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			data, ok := strings.CutPrefix(line, "data: ")
			if !ok {
				continue
			}

			var update models.WalletUpdate
			if err := json.Unmarshal([]byte(data), &update); err != nil {
				c.logger.Warn(streamCtx, "discarding malformed wallet push", "error", err)
				continue
			}

			select {
			case sub.updates <- update:
			case <-streamCtx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && streamCtx.Err() == nil {
			c.logger.Warn(streamCtx, "wallet stream closed", "error", err)
		}
	}()

	c.logger.Debug(ctx, fmt.Sprintf("wallet stream opened for %s", userID))
	return sub, nil
}
