// Package sqs implements the queue state reader against AWS SQS.
package sqs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"github.com/example/dlqwatch/internal/ports/secondary"
)

// fetchParallelism bounds concurrent attribute fetches within one poll
// cycle, keeping a cycle at ~O(1) round trips without hammering the API.
const fetchParallelism = 8

// api is the slice of the SQS client the reader uses. Narrowed for tests.
type api interface {
	GetQueueUrl(ctx context.Context, params *awssqs.GetQueueUrlInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueUrlOutput, error)
	GetQueueAttributes(ctx context.Context, params *awssqs.GetQueueAttributesInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error)
	ListQueues(ctx context.Context, params *awssqs.ListQueuesInput, optFns ...func(*awssqs.Options)) (*awssqs.ListQueuesOutput, error)
}

// Reader fetches approximate message counts for a set of queues.
// Stateless apart from a queue-name-to-URL cache.
type Reader struct {
	client   api
	patterns []string

	mu   sync.Mutex
	urls map[string]string
}

// NewReader creates a Reader over an SQS client. patterns are the
// lowercase name fragments used by DiscoverQueues.
func NewReader(client *awssqs.Client, patterns []string) *Reader {
	return newReader(client, patterns)
}

func newReader(client api, patterns []string) *Reader {
	return &Reader{
		client:   client,
		patterns: patterns,
		urls:     make(map[string]string),
	}
}

// FetchSnapshots reads backlog counts for the named queues concurrently.
// Every queue either appears in the snapshot map or in the error map;
// one failing queue never blocks the rest.
func (r *Reader) FetchSnapshots(ctx context.Context, queues []string) (map[string]secondary.QueueSnapshot, map[string]error) {
	snapshots := make(map[string]secondary.QueueSnapshot, len(queues))
	failures := make(map[string]error)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchParallelism)

	for _, queue := range queues {
		queue := queue
		g.Go(func() error {
			snap, err := r.fetchOne(gctx, queue)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failures[queue] = err
			} else {
				snapshots[queue] = snap
			}
			return nil // per-queue errors are reported, never propagated
		})
	}
	_ = g.Wait()

	return snapshots, failures
}

func (r *Reader) fetchOne(ctx context.Context, queue string) (secondary.QueueSnapshot, error) {
	url, err := r.resolveURL(ctx, queue)
	if err != nil {
		return secondary.QueueSnapshot{}, err
	}

	out, err := r.client.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(url),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameApproximateNumberOfMessages},
	})
	if err != nil {
		return secondary.QueueSnapshot{}, classify(queue, err)
	}

	count := 0
	if raw, ok := out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)]; ok {
		count, err = strconv.Atoi(raw)
		if err != nil {
			return secondary.QueueSnapshot{}, &secondary.TransientReadError{Queue: queue, Err: fmt.Errorf("bad message count %q: %w", raw, err)}
		}
	}

	return secondary.QueueSnapshot{
		QueueName:    queue,
		QueueURL:     url,
		MessageCount: count,
		FetchedAt:    time.Now().UTC(),
	}, nil
}

// resolveURL looks up and caches the queue URL. An unresolvable name is a
// ConfigurationError: the queue is misconfigured, not flaky.
func (r *Reader) resolveURL(ctx context.Context, queue string) (string, error) {
	r.mu.Lock()
	if url, ok := r.urls[queue]; ok {
		r.mu.Unlock()
		return url, nil
	}
	r.mu.Unlock()

	out, err := r.client.GetQueueUrl(ctx, &awssqs.GetQueueUrlInput{QueueName: aws.String(queue)})
	if err != nil {
		return "", classify(queue, err)
	}
	url := aws.ToString(out.QueueUrl)

	r.mu.Lock()
	r.urls[queue] = url
	r.mu.Unlock()
	return url, nil
}

// DiscoverQueues lists account queues whose names match the DLQ patterns.
func (r *Reader) DiscoverQueues(ctx context.Context) ([]secondary.QueueRef, error) {
	var refs []secondary.QueueRef
	var next *string
	for {
		out, err := r.client.ListQueues(ctx, &awssqs.ListQueuesInput{NextToken: next})
		if err != nil {
			return nil, &secondary.TransientReadError{Queue: "*", Err: err}
		}
		for _, url := range out.QueueUrls {
			name := url[strings.LastIndex(url, "/")+1:]
			if r.isDLQ(name) {
				refs = append(refs, secondary.QueueRef{Name: name, URL: url})
			}
		}
		if out.NextToken == nil {
			return refs, nil
		}
		next = out.NextToken
	}
}

func (r *Reader) isDLQ(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range r.patterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// classify maps SDK errors onto the reader's error taxonomy.
func classify(queue string, err error) error {
	var notFound *types.QueueDoesNotExist
	if errors.As(err, &notFound) {
		return &secondary.ConfigurationError{Queue: queue, Err: err}
	}
	return &secondary.TransientReadError{Queue: queue, Err: err}
}

// Ensure Reader implements the interface.
var _ secondary.QueueReader = (*Reader)(nil)
