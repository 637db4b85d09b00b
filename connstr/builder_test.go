package connstr

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/shardmgmt/shardmap"
)

type fakeCredential struct{ opts map[string]string }

func (f fakeCredential) ConnectionOptions() map[string]string { return f.opts }

func TestForShardRejectsCallerDataSource(t *testing.T) {
	b := &Builder{Credential: fakeCredential{}}
	_, err := b.ForShard("Data Source=evil;", shardmap.Location{ServerName: "srv", DatabaseName: "db0"}, uuid.New())
	assert.ErrorIs(t, err, ErrCallerSuppliedDataSource)
}

func TestForShardRejectsClientSideReconnect(t *testing.T) {
	b := &Builder{Credential: fakeCredential{}}
	_, err := b.ForShard("ConnectRetryCount=3;", shardmap.Location{ServerName: "srv", DatabaseName: "db0"}, uuid.New())
	assert.ErrorIs(t, err, ErrClientSideReconnect)
}

func TestForShardInjectsLocationAndApplicationNameSuffix(t *testing.T) {
	b := &Builder{Credential: fakeCredential{opts: map[string]string{"user id": "app", "password": "secret"}}}
	id := uuid.New()
	out, err := b.ForShard("Application Name=myapp;", shardmap.Location{ServerName: "srvA", Port: 1433, DatabaseName: "DB0"}, id)
	require.NoError(t, err)
	assert.True(t, strings.Contains(out, "data source=srvA,1433;"))
	assert.True(t, strings.Contains(out, "initial catalog=DB0;"))
	assert.True(t, strings.Contains(out, "myapp-ESC_v1.3_"+id.String()))
}

func TestForShardRequiresCredential(t *testing.T) {
	b := &Builder{}
	_, err := b.ForShard("", shardmap.Location{ServerName: "srv", DatabaseName: "db0"}, uuid.New())
	assert.Error(t, err)
}
