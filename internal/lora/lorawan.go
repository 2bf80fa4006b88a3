package lora

import (
	"encoding/hex"
	"strings"
	"sync"

	"github.com/brocaar/lorawan"
	"github.com/pkg/errors"

	"AirNode/internal/model"
)

// Session holds the ABP keys of one end device.
type Session struct {
	DevAddr lorawan.DevAddr
	NwkSKey lorawan.AES128Key
	AppSKey lorawan.AES128Key
	FPort   uint8
}

// ParseSession decodes the hex fields of cfg.
func ParseSession(cfg model.LoRaWANConfig) (Session, error) {
	var s Session
	if err := s.DevAddr.UnmarshalText([]byte(cfg.DevAddr)); err != nil {
		return s, errors.Wrap(err, "lorawan dev_addr")
	}
	if err := s.NwkSKey.UnmarshalText([]byte(cfg.NwkSKey)); err != nil {
		return s, errors.Wrap(err, "lorawan nwk_s_key")
	}
	if err := s.AppSKey.UnmarshalText([]byte(cfg.AppSKey)); err != nil {
		return s, errors.Wrap(err, "lorawan app_s_key")
	}
	if cfg.FPort == 0 {
		return s, errors.New("lorawan fport must be 1..223")
	}
	s.FPort = cfg.FPort
	return s, nil
}

// UplinkEncoder wraps payloads into unconfirmed LoRaWAN 1.0 data uplinks.
type UplinkEncoder struct {
	sess Session

	mu   sync.Mutex
	fCnt uint32
}

// NewUplinkEncoder starts the frame counter at zero.
func NewUplinkEncoder(sess Session) *UplinkEncoder {
	return &UplinkEncoder{sess: sess}
}

// FCnt returns the counter the next uplink will carry.
func (e *UplinkEncoder) FCnt() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fCnt
}

// Encode encrypts payload, signs the frame and returns it hex encoded.
func (e *UplinkEncoder) Encode(payload []byte) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fPort := e.sess.FPort
	phy := lorawan.PHYPayload{
		MHDR: lorawan.MHDR{
			MType: lorawan.UnconfirmedDataUp,
			Major: lorawan.LoRaWANR1,
		},
		MACPayload: &lorawan.MACPayload{
			FHDR: lorawan.FHDR{
				DevAddr: e.sess.DevAddr,
				FCnt:    e.fCnt,
			},
			FPort:      &fPort,
			FRMPayload: []lorawan.Payload{&lorawan.DataPayload{Bytes: payload}},
		},
	}
	if err := phy.EncryptFRMPayload(e.sess.AppSKey); err != nil {
		return "", errors.Wrap(err, "encrypt payload")
	}
	if err := phy.SetUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, e.sess.NwkSKey, e.sess.NwkSKey); err != nil {
		return "", errors.Wrap(err, "set mic")
	}
	b, err := phy.MarshalBinary()
	if err != nil {
		return "", errors.Wrap(err, "marshal phy payload")
	}
	e.fCnt++
	return hex.EncodeToString(b), nil
}

// DecodeUplink reverses Encode: it checks the MIC and device address and returns the
// frame counter and plaintext payload.
func DecodeUplink(line string, sess Session) (uint32, []byte, error) {
	b, err := hex.DecodeString(strings.TrimSpace(line))
	if err != nil {
		return 0, nil, errors.Wrap(err, "hex decode")
	}
	var phy lorawan.PHYPayload
	if err := phy.UnmarshalBinary(b); err != nil {
		return 0, nil, errors.Wrap(err, "unmarshal phy payload")
	}
	if phy.MHDR.MType != lorawan.UnconfirmedDataUp && phy.MHDR.MType != lorawan.ConfirmedDataUp {
		return 0, nil, errors.Errorf("unexpected mtype %s", phy.MHDR.MType)
	}
	ok, err := phy.ValidateUplinkDataMIC(lorawan.LoRaWAN1_0, 0, 0, 0, sess.NwkSKey, sess.NwkSKey)
	if err != nil {
		return 0, nil, errors.Wrap(err, "validate mic")
	}
	if !ok {
		return 0, nil, errors.New("invalid mic")
	}
	mac, ok := phy.MACPayload.(*lorawan.MACPayload)
	if !ok {
		return 0, nil, errors.New("not a data frame")
	}
	if mac.FHDR.DevAddr != sess.DevAddr {
		return 0, nil, errors.Errorf("unknown dev_addr %s", mac.FHDR.DevAddr)
	}
	if err := phy.DecryptFRMPayload(sess.AppSKey); err != nil {
		return 0, nil, errors.Wrap(err, "decrypt payload")
	}
	if len(mac.FRMPayload) != 1 {
		return mac.FHDR.FCnt, nil, nil
	}
	dp, ok := mac.FRMPayload[0].(*lorawan.DataPayload)
	if !ok {
		return 0, nil, errors.New("unexpected frm payload type")
	}
	return mac.FHDR.FCnt, dp.Bytes, nil
}
