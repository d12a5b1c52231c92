package bench

import "fmt"

// USBSetData enables or disables the data path for one USB port.
//
// Port policy:
//   - Port 1: both LR1 and LR2 go remote
//   - Port 2: LR2 only
//   - Port 3/4: the active-low !OE gate (portN_en)
func (c *Controller) USBSetData(port int, enable bool) error {
	switch port {
	case 1:
		if err := c.SetLR(1, enable); err != nil {
			return err
		}
		return c.SetLR(2, enable)
	case 2:
		return c.SetLR(2, enable)
	case 3:
		return c.SetChannel("port3_en", enable)
	case 4:
		return c.SetChannel("port4_en", enable)
	default:
		return fmt.Errorf("USB port must be 1..4, got %d", port)
	}
}

// USBSetVBus enables or disables a port's VBUS supply.
func (c *Controller) USBSetVBus(port int, enable bool) error {
	if port < 1 || port > 4 {
		return fmt.Errorf("USB port must be 1..4, got %d", port)
	}
	return c.SetChannel(fmt.Sprintf("port%d_vcc_en", port), enable)
}

// USBPortEnable sequences data and VBUS together. Full enable brings
// data up first so the hub sees a clean attach; full disable drops VBUS
// first. Mixed requests apply both immediately.
func (c *Controller) USBPortEnable(port int, data, vbus bool) error {
	if data && vbus {
		if err := c.USBSetData(port, true); err != nil {
			return err
		}
		c.sleep(usbDataToVBusDelay)
		return c.USBSetVBus(port, true)
	}
	if !data && !vbus {
		if err := c.USBSetVBus(port, false); err != nil {
			return err
		}
		c.sleep(usbVBusToDataDelay)
		return c.USBSetData(port, false)
	}
	if err := c.USBSetData(port, data); err != nil {
		return err
	}
	return c.USBSetVBus(port, vbus)
}

// ServiceEnable puts a bench into service mode: all rails killed, a
// settle wait for stored charge to bleed off, then its USB port brought
// fully up.
func (c *Controller) ServiceEnable(bench string) error {
	port, ok := BenchToUSBPort[bench]
	if !ok {
		return fmt.Errorf("unknown bench %q", bench)
	}

	if c.store != nil {
		c.store.Append("service_mode_enter", map[string]interface{}{"bench": bench})
		if c.metrics != nil {
			c.metrics.ActionsLogged.Inc()
		}
	}

	if err := c.KillPower(bench); err != nil {
		return err
	}
	c.sleep(serviceSettleDelay)

	return c.USBPortEnable(port, true, true)
}

// ServiceDisable takes a bench out of service mode by dropping its USB
// port. Rails stay off; re-energizing is an explicit operator action.
func (c *Controller) ServiceDisable(bench string) error {
	port, ok := BenchToUSBPort[bench]
	if !ok {
		return fmt.Errorf("unknown bench %q", bench)
	}

	if err := c.USBPortEnable(port, false, false); err != nil {
		return err
	}

	if c.store != nil {
		c.store.Append("service_mode_exit", map[string]interface{}{"bench": bench})
		if c.metrics != nil {
			c.metrics.ActionsLogged.Inc()
		}
	}
	return nil
}
