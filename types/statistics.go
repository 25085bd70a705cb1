package types

import (
	"go.uber.org/atomic"
)

type StatisticsItem struct {
	Count uint64 `json:",omitempty" yaml:",omitempty"`
	Bytes uint64 `json:",omitempty" yaml:",omitempty"`
}

type StatisticsSubSection struct {
	Video StatisticsItem `json:",omitempty" yaml:",omitempty"`
	Audio StatisticsItem `json:",omitempty" yaml:",omitempty"`
	Other StatisticsItem `json:",omitempty" yaml:",omitempty"`
}

func (s StatisticsSubSection) Total() StatisticsItem {
	return StatisticsItem{
		Count: s.Video.Count + s.Audio.Count + s.Other.Count,
		Bytes: s.Video.Bytes + s.Audio.Bytes + s.Other.Bytes,
	}
}

type Statistics struct {
	FramesGenerated StatisticsSubSection
	FramesEncoded   StatisticsSubSection
	PacketsEncoded  StatisticsSubSection
	PacketsWritten  StatisticsSubSection
}

type CountersItem struct {
	Count atomic.Uint64
	Bytes atomic.Uint64
}

func (c *CountersItem) Increment(msgSize uint64) {
	c.Count.Inc()
	c.Bytes.Add(msgSize)
}

func (c *CountersItem) ToStats() StatisticsItem {
	return StatisticsItem{
		Count: c.Count.Load(),
		Bytes: c.Bytes.Load(),
	}
}

type CountersSubSection struct {
	Video CountersItem
	Audio CountersItem
	Other CountersItem
}

func (s *CountersSubSection) Increment(mediaType MediaType, msgSize uint64) {
	switch mediaType {
	case MediaTypeVideo:
		s.Video.Increment(msgSize)
	case MediaTypeAudio:
		s.Audio.Increment(msgSize)
	default:
		s.Other.Increment(msgSize)
	}
}

func (s *CountersSubSection) ToStats() StatisticsSubSection {
	return StatisticsSubSection{
		Video: s.Video.ToStats(),
		Audio: s.Audio.ToStats(),
		Other: s.Other.ToStats(),
	}
}

type Counters struct {
	FramesGenerated CountersSubSection
	FramesEncoded   CountersSubSection
	PacketsEncoded  CountersSubSection
	PacketsWritten  CountersSubSection
}

func (c *Counters) ToStats() Statistics {
	return Statistics{
		FramesGenerated: c.FramesGenerated.ToStats(),
		FramesEncoded:   c.FramesEncoded.ToStats(),
		PacketsEncoded:  c.PacketsEncoded.ToStats(),
		PacketsWritten:  c.PacketsWritten.ToStats(),
	}
}
