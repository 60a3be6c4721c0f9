package shopify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"orderimages/internal/security"
)

// DDBClient is the subset of *dynamodb.Client used by IntegrationStore.
type DDBClient interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// IntegrationItem mirrors the integrations table.
type IntegrationItem struct {
	PK             string `dynamodbav:"PK"`
	SK             string `dynamodbav:"SK"`
	Shop           string `dynamodbav:"Shop"`
	AccessTokenEnc string `dynamodbav:"AccessTokenEnc"`
	Scope          string `dynamodbav:"Scope"`
	CreatedAt      string `dynamodbav:"CreatedAt"`
}

var ErrShopNotConnected = errors.New("shop not connected")

// IntegrationStore resolves a shop's Admin API token from the tables written
// by the app's OAuth install flow.
type IntegrationStore struct {
	DDB               DDBClient
	IntegrationsTable string
	ShopToUserTable   string
	Key               []byte // AES-256 key for AccessTokenEnc
}

// UsersForShop lists the users (Cognito subs) linked to shopDomain.
func (s *IntegrationStore) UsersForShop(ctx context.Context, shopDomain string) ([]string, error) {
	if strings.TrimSpace(s.ShopToUserTable) == "" {
		return nil, errors.New("SHOP_TO_USER_TABLE not set")
	}

	out, err := s.DDB.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.ShopToUserTable),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :u)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: "SHOP#" + shopDomain},
			":u":  &types.AttributeValueMemberS{Value: "USER#"},
		},
	})
	if err != nil {
		return nil, err
	}

	var subs []string
	for _, it := range out.Items {
		if sk, ok := it["SK"].(*types.AttributeValueMemberS); ok {
			if sub := strings.TrimPrefix(sk.Value, "USER#"); sub != "" {
				subs = append(subs, sub)
			}
		}
	}
	return subs, nil
}

// Integration loads the integration record of one user and shop.
func (s *IntegrationStore) Integration(ctx context.Context, sub, shopDomain string) (*IntegrationItem, error) {
	if strings.TrimSpace(s.IntegrationsTable) == "" {
		return nil, errors.New("INTEGRATIONS_TABLE not set")
	}

	out, err := s.DDB.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.IntegrationsTable),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: "USER#" + sub},
			"SK": &types.AttributeValueMemberS{Value: "SHOPIFY#" + shopDomain},
		},
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("%w: %s", ErrShopNotConnected, shopDomain)
	}

	var integ IntegrationItem
	if err := attributevalue.UnmarshalMap(out.Item, &integ); err != nil {
		return nil, err
	}
	return &integ, nil
}

// AccessToken returns the decrypted token of the first user linked to
// shopDomain that has one stored.
func (s *IntegrationStore) AccessToken(ctx context.Context, shopDomain string) (string, error) {
	if shopDomain == "" {
		return "", errors.New("missing shop domain")
	}
	if len(s.Key) == 0 {
		return "", errors.New("TOKEN_ENC_KEY_B64 not set")
	}

	subs, err := s.UsersForShop(ctx, shopDomain)
	if err != nil {
		return "", err
	}
	if len(subs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrShopNotConnected, shopDomain)
	}

	var lastErr error
	for _, sub := range subs {
		integ, err := s.Integration(ctx, sub, shopDomain)
		if err != nil {
			lastErr = err
			continue
		}
		enc := strings.TrimSpace(integ.AccessTokenEnc)
		if enc == "" {
			lastErr = errors.New("no AccessTokenEnc on record")
			continue
		}
		token, err := security.DecryptAESGCM(s.Key, enc)
		if err != nil {
			return "", fmt.Errorf("failed to decrypt token: %w", err)
		}
		return token, nil
	}
	return "", lastErr
}
