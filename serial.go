// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package isodispatch

import "code.hybscloud.com/atomix"

// Serial is a monotonically increasing identifier.
// Dispatches and subscribers draw from separate counters.
type Serial = uint32

var (
	dispatchCounter   atomix.Uint32
	subscriberCounter atomix.Uint32
)

// nextDispatchSerial returns the serial of the next dispatched action.
func nextDispatchSerial() Serial {
	return dispatchCounter.Add(1)
}

// nextSubscriberID returns a fresh subscriber identity.
func nextSubscriberID() SubscriberID {
	return SubscriberID(subscriberCounter.Add(1))
}
