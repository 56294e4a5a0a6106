// Package events diffuse le cycle de vie des paiements aux tableaux de bord
// POS connectes en websocket. C'est la publication explicite d'evenements qui
// remplace les signaux implicites: tout collaborateur (completion de
// commande, caisse) s'abonne ici.
package events

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/yaokouame/pos-payments/models"
	"github.com/yaokouame/pos-payments/utils"
)

// Types d'evenements publies.
const (
	EventPaymentPending  = "payment_pending"
	EventPaymentSuccess  = "payment_success"
	EventPaymentFailed   = "payment_failed"
	EventPaymentExpired  = "payment_expired"
	EventPaymentRefunded = "payment_refunded"
	EventDrawerClosed    = "drawer_closed"
)

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub retient les clients par tenant: un dashboard ne recoit que les
// evenements de son business.
type Hub struct {
	clients map[*websocket.Conn]uint // conn -> business id
	mutex   sync.Mutex
}

var hub = Hub{
	clients: make(map[*websocket.Conn]uint),
}

// RegisterClient ajoute une connexion pour un tenant.
func RegisterClient(conn *websocket.Conn, businessID uint) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	hub.clients[conn] = businessID
}

// UnregisterClient retire et ferme la connexion.
func UnregisterClient(conn *websocket.Conn) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	delete(hub.clients, conn)
	conn.Close()
}

// BroadcastPayment publie l'etat courant d'un paiement vers son tenant.
func BroadcastPayment(payment models.Payment) {
	var event string
	switch payment.Status {
	case models.PaymentStatusSuccess:
		event = EventPaymentSuccess
	case models.PaymentStatusFailed:
		event = EventPaymentFailed
	case models.PaymentStatusExpired:
		event = EventPaymentExpired
	case models.PaymentStatusRefunded, models.PaymentStatusPartiallyRefunded:
		event = EventPaymentRefunded
	default:
		event = EventPaymentPending
	}

	broadcast(payment.BusinessID, Message{
		Event: event,
		Data: map[string]interface{}{
			"payment":          payment,
			"amount_formatted": utils.FormatAmountXOF(payment.Amount),
		},
	})
}

// BroadcastDrawerClosed notifie la cloture d'une session de caisse.
func BroadcastDrawerClosed(session models.CashDrawerSession) {
	broadcast(session.BusinessID, Message{
		Event: EventDrawerClosed,
		Data: map[string]interface{}{
			"session":            session,
			"variance_formatted": utils.FormatAmountXOF(session.Variance),
		},
	})
}

func broadcast(businessID uint, msg Message) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Error marshaling event: %v", err)
		return
	}

	for conn, tenant := range hub.clients {
		if tenant != businessID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Printf("Error sending event to client: %v", err)
		}
	}
}
