package scene

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisher_PublishPose(t *testing.T) {
	mockClient := NewMockClient()
	mockClient.SetConnected(true)
	pub := NewPublisher(mockClient, "geoscene")

	pose := CameraPose{Center: GeoPoint{Lat: 10, Lng: 20}, Range: 1500, Heading: 90, Tilt: 45}
	require.NoError(t, pub.PublishPose(pose))

	msgs := mockClient.GetPublishedMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "geoscene/camera", msgs[0].Topic)
	assert.True(t, msgs[0].Retain)
	assert.Equal(t, byte(0), msgs[0].QoS)

	var body posePayload
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &body))
	assert.Equal(t, 10.0, body.Center.Lat)
	assert.Equal(t, 1500.0, body.Range)
	assert.NotZero(t, body.Timestamp)

	last, ok := pub.LastPose()
	require.True(t, ok)
	assert.Equal(t, pose, last)
}

func TestPublisher_PublishScene(t *testing.T) {
	mockClient := NewMockClient()
	mockClient.SetConnected(true)
	pub := NewPublisher(mockClient, "geoscene")

	s := SceneState{
		Markers:  []Marker{{ID: "a", Position: GeoPoint{Lat: 1, Lng: 2}, Kind: KindPlace}},
		ViewMode: ViewModeFlat,
	}
	require.NoError(t, pub.PublishScene(s))

	msgs := mockClient.GetPublishedMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "geoscene/scene", msgs[0].Topic)

	var body struct {
		Scene     SceneState `json:"scene"`
		Timestamp int64      `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &body))
	assert.Len(t, body.Scene.Markers, 1)
	assert.NotZero(t, body.Timestamp)
}

func TestPublisher_NotConnected(t *testing.T) {
	mockClient := NewMockClient() // not connected
	pub := NewPublisher(mockClient, "geoscene")

	assert.Error(t, pub.PublishPose(CameraPose{Range: 100}))
	assert.Error(t, pub.PublishScene(SceneState{}))
	assert.Empty(t, mockClient.GetPublishedMessages())
}

func TestPublisher_NilClient(t *testing.T) {
	pub := NewPublisher(nil, "geoscene")
	assert.Error(t, pub.PublishPose(CameraPose{Range: 100}))
	_, ok := pub.LastPose()
	assert.False(t, ok)
}

func TestPublisher_QoSAndRetain(t *testing.T) {
	mockClient := NewMockClient()
	mockClient.SetConnected(true)
	pub := NewPublisher(mockClient, "geoscene")

	pub.SetQoS(1)
	pub.SetRetain(false)
	require.NoError(t, pub.PublishPose(CameraPose{Range: 100}))

	msgs := mockClient.GetPublishedMessages()
	require.Len(t, msgs, 1)
	assert.Equal(t, byte(1), msgs[0].QoS)
	assert.False(t, msgs[0].Retain)

	// Out-of-range QoS is ignored.
	pub.SetQoS(7)
	require.NoError(t, pub.PublishPose(CameraPose{Range: 100}))
	assert.Equal(t, byte(1), mockClient.GetPublishedMessages()[1].QoS)
}
